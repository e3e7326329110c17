package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/akylbek/payment-system/payment-gateway/internal/models"
)

// ErrNoProvider is returned when no registered provider satisfies the
// requested criteria. Dispatch never falls back to a default provider: an
// unsupported combination is a configuration problem the caller must see.
type ErrNoProvider struct {
	Criteria Criteria
}

func (e *ErrNoProvider) Error() string {
	return fmt.Sprintf("no payment provider supports currency=%q method=%q country=%q",
		e.Criteria.Currency, e.Criteria.Method, e.Criteria.Country)
}

// Criteria selects a provider. Empty Method/Country fields are wildcards.
type Criteria struct {
	Currency models.Currency
	Method   string
	Country  string
}

// Registry owns the single cached instance per providerId. Instances are
// built lazily on first use and live for the process lifetime. Selection
// walks providers in registration order, which doubles as the tie-break;
// the card provider registers before mobile money and that ordering is
// part of the dispatch contract.
type Registry struct {
	mu        sync.Mutex
	order     []string
	builders  map[string]func() (Provider, error)
	instances map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		builders:  make(map[string]func() (Provider, error)),
		instances: make(map[string]Provider),
	}
}

// Register adds a provider constructor under its id. Later registrations
// for the same id replace the builder but keep the original position.
func (r *Registry) Register(id string, build func() (Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.builders[id]; !exists {
		r.order = append(r.order, id)
	}
	r.builders[id] = build
}

// Get returns the cached instance for id, constructing it on first use.
func (r *Registry) Get(id string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id)
}

func (r *Registry) getLocked(id string) (Provider, error) {
	if p, ok := r.instances[id]; ok {
		return p, nil
	}
	build, ok := r.builders[id]
	if !ok {
		return nil, fmt.Errorf("unknown payment provider %q", id)
	}
	p, err := build()
	if err != nil {
		return nil, fmt.Errorf("initialize provider %q: %w", id, err)
	}
	r.instances[id] = p
	return p, nil
}

// ForCurrency returns the first registered provider handling the currency.
func (r *Registry) ForCurrency(currency models.Currency) (Provider, error) {
	return r.Best(Criteria{Currency: currency})
}

// ForMethod returns the first registered provider handling the method.
func (r *Registry) ForMethod(method string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		p, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}
		for _, m := range p.SupportedMethods() {
			if m == method {
				return p, nil
			}
		}
	}
	return nil, &ErrNoProvider{Criteria: Criteria{Method: method}}
}

// Best returns the first provider, in registration order, satisfying every
// populated predicate.
func (r *Registry) Best(criteria Criteria) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		p, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}
		if !p.Supports(criteria.Currency, criteria.Method) {
			continue
		}
		if criteria.Country != "" && !supportsCountry(p, criteria.Country) {
			continue
		}
		return p, nil
	}
	return nil, &ErrNoProvider{Criteria: criteria}
}

func supportsCountry(p Provider, country string) bool {
	for _, c := range p.SupportedCountries() {
		if c == country {
			return true
		}
	}
	return false
}

// AggregateHealth is the combined verdict across all registered providers.
// Healthy only when every provider is healthy.
type AggregateHealth struct {
	Healthy   bool           `json:"healthy"`
	Summary   string         `json:"summary"`
	Providers []HealthStatus `json:"providers"`
}

// CheckAllHealth fans health checks out concurrently and joins after all
// complete. One provider failing its check never blocks collecting the
// others' results.
func (r *Registry) CheckAllHealth(ctx context.Context) AggregateHealth {
	r.mu.Lock()
	providers := make([]Provider, 0, len(r.order))
	for _, id := range r.order {
		if p, err := r.getLocked(id); err == nil {
			providers = append(providers, p)
		} else {
			providers = append(providers, nil)
		}
	}
	ids := append([]string(nil), r.order...)
	r.mu.Unlock()

	results := make([]HealthStatus, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		if p == nil {
			results[i] = HealthStatus{ProviderID: ids[i], Error: "provider failed to initialize"}
			continue
		}
		wg.Add(1)
		go func(i int, p Provider) {
			defer wg.Done()
			results[i] = p.HealthCheck(ctx)
		}(i, p)
	}
	wg.Wait()

	healthy := 0
	for _, res := range results {
		if res.Healthy {
			healthy++
		}
	}

	agg := AggregateHealth{
		Healthy:   healthy == len(results) && len(results) > 0,
		Providers: results,
	}
	switch {
	case len(results) == 0:
		agg.Summary = "no providers registered"
	case healthy == len(results):
		agg.Summary = "all providers healthy"
	case healthy == 0:
		agg.Summary = "all providers unhealthy"
	default:
		agg.Summary = fmt.Sprintf("%d/%d providers healthy", healthy, len(results))
	}
	return agg
}
