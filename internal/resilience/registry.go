package resilience

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
)

// Registry owns one circuit breaker and policy per upstream source plus the
// shared Deduplicator. Build one per process (or per test).
type Registry struct {
	defaults    Policy
	overrides   map[model.Source]Policy
	breakerOpts []BreakerOption
	log         logrus.FieldLogger
	dedup       *Deduplicator

	mu        sync.Mutex
	executors map[model.Source]*Executor
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithPolicyOverrides sets per-source policies; zero fields inherit the defaults.
func WithPolicyOverrides(overrides map[model.Source]Policy) RegistryOption {
	return func(r *Registry) { r.overrides = overrides }
}

// WithRegistryBreakerOptions passes options to every breaker the registry creates.
func WithRegistryBreakerOptions(opts ...BreakerOption) RegistryOption {
	return func(r *Registry) { r.breakerOpts = append(r.breakerOpts, opts...) }
}

// WithRegistryLogger sets the logger for breakers and retries.
func WithRegistryLogger(l logrus.FieldLogger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry creates a registry with executors for every known source.
func NewRegistry(defaults Policy, opts ...RegistryOption) *Registry {
	r := &Registry{
		defaults:  defaults.Merge(DefaultPolicy()),
		dedup:     NewDeduplicator(),
		executors: make(map[model.Source]*Executor),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Discard()
	}
	for _, src := range model.Sources {
		r.Executor(src)
	}
	return r
}

// Executor returns the executor for source, creating it on first use.
func (r *Registry) Executor(source model.Source) *Executor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.executors[source]; ok {
		return e
	}
	policy := r.defaults
	if o, ok := r.overrides[source]; ok {
		policy = o.Merge(r.defaults)
	}
	breakerOpts := append([]BreakerOption{WithBreakerLogger(r.log)}, r.breakerOpts...)
	e := &Executor{
		source:  source,
		policy:  policy,
		breaker: NewCircuitBreaker(source, policy, breakerOpts...),
		dedup:   r.dedup,
		log:     r.log,
	}
	r.executors[source] = e
	return e
}

// Snapshots returns the state of every breaker, ordered by source name.
func (r *Registry) Snapshots() []BreakerSnapshot {
	r.mu.Lock()
	executors := make([]*Executor, 0, len(r.executors))
	for _, e := range r.executors {
		executors = append(executors, e)
	}
	r.mu.Unlock()

	out := make([]BreakerSnapshot, 0, len(executors))
	for _, e := range executors {
		out = append(out, e.breaker.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

// Executor bundles a source's breaker, retry policy and the shared deduplicator.
type Executor struct {
	source  model.Source
	policy  Policy
	breaker *CircuitBreaker
	dedup   *Deduplicator
	log     logrus.FieldLogger
}

// Source returns the upstream this executor guards.
func (e *Executor) Source() model.Source { return e.source }

// Breaker returns the source's circuit breaker.
func (e *Executor) Breaker() *CircuitBreaker { return e.breaker }

// Deduplicator returns the deduplicator shared by every executor of the registry.
func (e *Executor) Deduplicator() *Deduplicator { return e.dedup }

// Policy returns the effective policy.
func (e *Executor) Policy() Policy { return e.policy }

// Retry runs op with retry and circuit breaking, without deduplication.
func (e *Executor) Retry(ctx context.Context, op func(context.Context) error) error {
	return Retry(ctx, e.breaker, e.policy, e.log, op)
}

// Do runs op deduplicated under key (namespaced by source), retried and
// circuit broken. Successful results are shared for ttl.
func Do[T any](ctx context.Context, e *Executor, key string, ttl time.Duration, op func(context.Context) (T, error)) (T, error) {
	return Dedup(ctx, e.dedup, string(e.source)+":"+key, ttl, func(ctx context.Context) (T, error) {
		var out T
		err := e.Retry(ctx, func(ctx context.Context) error {
			v, err := op(ctx)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		return out, err
	})
}
