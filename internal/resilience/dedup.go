package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultFlightTimeout bounds a shared upstream call once it is detached from
// the caller that started it.
const defaultFlightTimeout = 60 * time.Second

// Deduplicator collapses concurrent calls with the same key into one upstream
// call and keeps successful results for a per-call TTL. Failures are never
// retained, so the next caller after a failure starts a fresh call.
type Deduplicator struct {
	group         singleflight.Group
	flightTimeout time.Duration
	now           func() time.Time

	mu   sync.Mutex
	done map[string]completed
}

type completed struct {
	value   any
	expires time.Time
}

// NewDeduplicator creates an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		flightTimeout: defaultFlightTimeout,
		now:           time.Now,
		done:          make(map[string]completed),
	}
}

// Dedup returns the retained result for key if it has not expired; otherwise
// it joins the in-flight call for key or starts op. At most one op per key
// runs at any time.
//
// op runs detached from the starting caller's cancellation (bounded by the
// flight timeout) so that one caller giving up does not fail everyone joined
// to the same call. Each caller still returns as soon as its own ctx is done.
func Dedup[T any](ctx context.Context, d *Deduplicator, key string, ttl time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := d.lookup(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	ch := d.group.DoChan(key, func() (any, error) {
		if v, ok := d.lookup(key); ok {
			return v, nil
		}
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.flightTimeout)
		defer cancel()

		v, err := op(flightCtx)
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			d.store(key, v, ttl)
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		typed, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("dedup key %q holds %T, not the requested type", key, res.Val)
		}
		return typed, nil
	}
}

// Forget drops any retained result for key.
func (d *Deduplicator) Forget(key string) {
	d.mu.Lock()
	delete(d.done, key)
	d.mu.Unlock()
}

func (d *Deduplicator) lookup(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.done[key]
	if !ok {
		return nil, false
	}
	if !d.now().Before(c.expires) {
		delete(d.done, key)
		return nil, false
	}
	return c.value, true
}

func (d *Deduplicator) store(key string, v any, ttl time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.done[key] = completed{value: v, expires: now.Add(ttl)}

	// Opportunistic sweep keeps the table from growing with one-off keys.
	for k, c := range d.done {
		if !now.Before(c.expires) {
			delete(d.done, k)
		}
	}
}
