package idempotency

import (
	"context"
	"sync"
	"time"
)

// EvictionPolicy makes the ledger's housekeeping behavior explicit and
// testable: a full sweep of expired entries runs whenever MarkProcessed
// pushes the ledger size past SizeThreshold. There is no background sweep;
// growth stays bounded because every insert past the threshold pays for a
// sweep.
type EvictionPolicy struct {
	SizeThreshold int
}

var DefaultEvictionPolicy = EvictionPolicy{SizeThreshold: 1000}

// MemoryLedger is the in-process ledger. Reads and writes are atomic per
// key under one mutex; concurrent checks for the same key cannot both
// observe "not a duplicate" followed by both marking.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	policy  EvictionPolicy
	now     func() time.Time
}

type MemoryOption func(*MemoryLedger)

func WithTTL(ttl time.Duration) MemoryOption {
	return func(l *MemoryLedger) { l.ttl = ttl }
}

func WithEvictionPolicy(p EvictionPolicy) MemoryOption {
	return func(l *MemoryLedger) { l.policy = p }
}

// WithClock overrides the time source. Tests use this to advance past TTL.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLedger) { l.now = now }
}

func NewMemoryLedger(opts ...MemoryOption) *MemoryLedger {
	l := &MemoryLedger{
		entries: make(map[string]time.Time),
		ttl:     DefaultTTL,
		policy:  DefaultEvictionPolicy,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsDuplicate reports whether key was marked within the TTL window. An
// expired hit is pruned on the spot and reported as unseen.
func (l *MemoryLedger) IsDuplicate(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen, ok := l.entries[key]
	if !ok {
		return false, nil
	}
	if l.now().Sub(seen) > l.ttl {
		delete(l.entries, key)
		return false, nil
	}
	return true, nil
}

// MarkProcessed records the key at the current time, sweeping expired
// entries when the ledger crosses the eviction threshold.
func (l *MemoryLedger) MarkProcessed(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[key] = l.now()
	if len(l.entries) > l.policy.SizeThreshold {
		l.sweepLocked()
	}
	return nil
}

func (l *MemoryLedger) sweepLocked() {
	cutoff := l.now().Add(-l.ttl)
	for k, seen := range l.entries {
		if seen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// Len is exposed for eviction-policy tests.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
