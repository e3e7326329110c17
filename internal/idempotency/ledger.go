package idempotency

import (
	"context"
	"strings"
	"time"
)

// DefaultTTL bounds the replay window. A key older than this MAY be
// reprocessed: deliberate bounded-replay semantics, not infinite-once.
// Callers needing indefinite dedup persist the key durably as well (the
// order side keeps an idempotency_key column on payment_events).
const DefaultTTL = 24 * time.Hour

// Ledger maps idempotency keys to their first-seen time. Duplicate
// suppression is fail-closed: a ledger error must block processing, since
// admitting an event the ledger cannot vouch for defeats duplicate-charge
// protection. This is the opposite of the rate limiter's fail-open policy
// and the asymmetry is intentional.
type Ledger interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
}

// MakeKey builds the canonical idempotency key. The format is load-bearing:
// lowercase, colon-delimited, reproduced exactly so persisted ledgers stay
// compatible across implementations.
func MakeKey(provider, eventType, referenceID string) string {
	return strings.ToLower(provider + ":" + eventType + ":" + referenceID)
}
