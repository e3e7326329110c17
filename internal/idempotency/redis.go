package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idem:"

// RedisLedger shares the dedup window across gateway replicas. Errors from
// the store propagate to the caller unchanged; the pipeline treats them as
// a processing block (fail-closed), never as "not a duplicate".
type RedisLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisLedger(rdb *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLedger{rdb: rdb, ttl: ttl}
}

func (l *RedisLedger) IsDuplicate(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency store: %w", err)
	}
	return n > 0, nil
}

func (l *RedisLedger) MarkProcessed(ctx context.Context, key string) error {
	if err := l.rdb.Set(ctx, redisKeyPrefix+key, "1", l.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	return nil
}
