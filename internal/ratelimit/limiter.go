package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RemainingUnknown is the sentinel remaining count reported when the
// backing store is unreachable and the limiter fails open.
const RemainingUnknown = -1

// FailurePolicy decides what a limiter does when its backing store is
// unavailable. The payment-flow limiter fails open: availability wins over
// strict limiting under infrastructure failure.
type FailurePolicy int

const (
	FailOpen FailurePolicy = iota
	FailClosed
)

// Rule is the per-scope admission configuration.
type Rule struct {
	MaxRequests int
	Window      time.Duration
}

// Verdict is the immutable outcome of one check.
type Verdict struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter enforces one scope's rule against the shared counter store.
// Every check mutates the counter; there is no read-only probe.
type Limiter struct {
	scope  string
	rule   Rule
	store  CounterStore
	policy FailurePolicy
	logger *zap.Logger
}

// Check admits or denies one request for identifier within the scope's
// window.
func (l *Limiter) Check(ctx context.Context, identifier string) Verdict {
	key := l.scope + ":" + identifier
	count, ttl, err := l.store.Incr(ctx, key, l.rule.Window)
	if err != nil {
		observeVerdict(l.scope, "error")
		if l.policy == FailOpen {
			l.logger.Warn("rate limit store unavailable, failing open",
				zap.String("scope", l.scope),
				zap.Error(err),
			)
			return Verdict{Allowed: true, Remaining: RemainingUnknown, ResetAt: time.Now().Add(l.rule.Window)}
		}
		return Verdict{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(l.rule.Window), RetryAfter: l.rule.Window}
	}

	resetAt := time.Now().Add(ttl)
	if count > int64(l.rule.MaxRequests) {
		observeVerdict(l.scope, "denied")
		return Verdict{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: ttl}
	}

	observeVerdict(l.scope, "allowed")
	remaining := l.rule.MaxRequests - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Verdict{Allowed: true, Remaining: remaining, ResetAt: resetAt}
}

// Registry hands out one lazily-built Limiter per scope so rule lookup and
// limiter construction happen once per scope, not per call.
type Registry struct {
	mu          sync.Mutex
	store       CounterStore
	rules       map[string]Rule
	defaultRule Rule
	policy      FailurePolicy
	logger      *zap.Logger
	limiters    map[string]*Limiter
}

func NewRegistry(store CounterStore, rules map[string]Rule, policy FailurePolicy, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:       store,
		rules:       rules,
		defaultRule: Rule{MaxRequests: 60, Window: time.Minute},
		policy:      policy,
		logger:      logger,
		limiters:    make(map[string]*Limiter),
	}
}

// For returns the scope's limiter, building it on first use.
func (r *Registry) For(scope string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[scope]; ok {
		return l
	}
	rule, ok := r.rules[scope]
	if !ok {
		rule = r.defaultRule
	}
	l := &Limiter{scope: scope, rule: rule, store: r.store, policy: r.policy, logger: r.logger}
	r.limiters[scope] = l
	return l
}

// Check is the registry-level entry point: scope lookup plus admission.
func (r *Registry) Check(ctx context.Context, scope, identifier string) Verdict {
	return r.For(scope).Check(ctx, identifier)
}

// ClientKey derives the counter identifier from the client address,
// prefixed with the authenticated user when one is present so anonymous
// and per-user limits compose without colliding.
func ClientKey(ip, userID string) string {
	if userID != "" {
		return "user:" + userID + ":" + ip
	}
	return ip
}
