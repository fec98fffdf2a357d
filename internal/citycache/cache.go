// Package citycache keeps the slowly changing city lists of each upstream in memory.
package citycache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/logging"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/model"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/normalize"
	"github.com/ndewijer/Metal-Price-Aggregator-Backend/internal/resilience"
)

const (
	// DefaultTTL is how long a fetched city list is reused.
	DefaultTTL = time.Hour

	// DefaultRetryInterval is how long a stale or fallback list is served
	// after a failed reload before the upstream is asked again.
	DefaultRetryInterval = time.Minute
)

var errEmptyList = errors.New("upstream returned an empty city list")

// Loader fetches the current city list from an upstream.
type Loader func(ctx context.Context) ([]model.CityDescriptor, error)

// Cache serves a city list and a resolver built from it. The list is
// reloaded once per TTL; concurrent reloads collapse into one upstream call.
// When a reload fails the previous list keeps being served, or the
// hardcoded fallback list when nothing was ever loaded.
type Cache struct {
	name     string
	load     Loader
	fallback []model.CityDescriptor
	ttl      time.Duration
	now      func() time.Time
	dedup    *resilience.Deduplicator
	log      *logrus.Entry

	retryInterval time.Duration

	mu       sync.RWMutex
	snapshot *snapshot
}

type snapshot struct {
	cities   []model.CityDescriptor
	resolver *normalize.Resolver
	loadedAt time.Time
	expires  time.Time
	fallback bool
}

// Option customizes a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRetryInterval overrides DefaultRetryInterval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the cache logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = logging.Component(l, "citycache").WithField("cache", c.name) }
}

// WithDeduplicator shares a deduplicator with other components.
func WithDeduplicator(d *resilience.Deduplicator) Option {
	return func(c *Cache) { c.dedup = d }
}

// New creates a cache named name (used in logs and dedup keys).
func New(name string, load Loader, fallback []model.CityDescriptor, opts ...Option) *Cache {
	c := &Cache{
		name:     name,
		load:     load,
		fallback: fallback,
		ttl:      DefaultTTL,
		now:      time.Now,

		retryInterval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.Component(nil, "citycache").WithField("cache", name)
	}
	if c.dedup == nil {
		c.dedup = resilience.NewDeduplicator()
	}
	return c
}

// Name returns the cache name.
func (c *Cache) Name() string {
	return c.name
}

// Cities returns the current city list. It never fails.
func (c *Cache) Cities(ctx context.Context) []model.CityDescriptor {
	snap := c.current(ctx)
	return append([]model.CityDescriptor(nil), snap.cities...)
}

// Resolve matches input against the current city list. An unmatched city
// resolves to Mumbai with Fallback set, which is logged.
func (c *Cache) Resolve(ctx context.Context, input string) model.CityResolution {
	res := c.current(ctx).resolver.Resolve(input)
	if res.Fallback {
		c.log.WithFields(logrus.Fields{
			"input":    input,
			"fallback": res.City.CanonicalName,
		}).Warn("city not recognised, using default city")
	}
	return res
}

// Refresh reloads the list now regardless of its age. On failure the
// previous list is kept and the error returned.
func (c *Cache) Refresh(ctx context.Context) error {
	_, err := c.reload(ctx)
	return err
}

// current returns a fresh snapshot, reloading it when expired or missing.
func (c *Cache) current(ctx context.Context) *snapshot {
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()

	if snap != nil && c.now().Before(snap.expires) {
		return snap
	}

	fresh, err := c.reload(ctx)
	if err == nil {
		return fresh
	}
	return c.degrade(err)
}

func (c *Cache) reload(ctx context.Context) (*snapshot, error) {
	return resilience.Dedup(ctx, c.dedup, "citycache:"+c.name, 0, func(ctx context.Context) (*snapshot, error) {
		cities, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		if len(cities) == 0 {
			return nil, errEmptyList
		}
		now := c.now()
		snap := &snapshot{
			cities:   cities,
			resolver: normalize.NewResolver(cities, normalize.DefaultCity),
			loadedAt: now,
			expires:  now.Add(c.ttl),
		}

		c.mu.Lock()
		c.snapshot = snap
		c.mu.Unlock()

		c.log.WithField("cities", len(cities)).Debug("city list refreshed")
		return snap, nil
	})
}

// degrade keeps serving the last loaded list, or the fallback list, and
// holds off the next reload for retryInterval.
func (c *Cache) degrade(err error) *snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.snapshot != nil && now.Before(c.snapshot.expires) {
		// Another caller loaded a list meanwhile.
		return c.snapshot
	}

	next := &snapshot{expires: now.Add(c.retryInterval)}
	if c.snapshot != nil && !c.snapshot.fallback {
		next.cities = c.snapshot.cities
		next.resolver = c.snapshot.resolver
		next.loadedAt = c.snapshot.loadedAt
		c.log.WithError(err).WithField("age", now.Sub(next.loadedAt).String()).
			Warn("city list refresh failed, serving stale list")
	} else {
		next.cities = c.fallback
		next.resolver = normalize.NewResolver(c.fallback, normalize.DefaultCity)
		next.loadedAt = now
		next.fallback = true
		c.log.WithError(err).Warn("city list unavailable, serving fallback list")
	}
	c.snapshot = next
	return next
}

// IsFallback reports whether the cache is currently serving the hardcoded list.
func (c *Cache) IsFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot != nil && c.snapshot.fallback
}
