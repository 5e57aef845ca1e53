// Package cache holds the TTL-bound views of station data the service reads from.
package cache

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ev-station-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// Lookup results recorded on the cache_lookups_total metric.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
)

// Reload outcomes recorded on the cache_reloads_total metric.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
	outcomeEmpty   = "empty"
)

// Loader produces a fresh payload for a tier.
type Loader[T any] func(ctx context.Context) (T, error)

// TierOptions configures a Tier.
type TierOptions[T any] struct {
	Name  string
	TTL   time.Duration
	Clock clockwork.Clock
	Load  Loader[T]

	// Size reports the number of stations in a payload, for the tier size gauge.
	Size func(T) int

	// KeepStale makes a failed or empty reload return the previous payload
	// instead of replacing it. The fetch time is left untouched so the next
	// call retries.
	KeepStale bool

	// OnStore runs after a new payload is stored.
	OnStore func(ctx context.Context, payload T)
}

type entry[T any] struct {
	payload   T
	fetchedAt time.Time
}

// Tier is one independently expiring cache slot. Readers see whole payloads
// only: an entry is swapped atomically and never modified after it is stored.
// Concurrent misses share a single reload.
type Tier[T any] struct {
	opts    TierOptions[T]
	current atomic.Pointer[entry[T]]
	group   singleflight.Group
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewTier creates an empty tier. A nil clock uses real time.
func NewTier[T any](opts TierOptions[T], metrics *observability.Metrics, logger *slog.Logger) *Tier[T] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Size == nil {
		opts.Size = func(T) int { return 0 }
	}
	return &Tier[T]{
		opts:    opts,
		metrics: metrics,
		logger:  logger.With("tier", opts.Name),
	}
}

// Name returns the tier name used in logs and metrics.
func (t *Tier[T]) Name() string { return t.opts.Name }

// Loaded reports whether the tier holds a payload, fresh or not.
func (t *Tier[T]) Loaded() bool { return t.current.Load() != nil }

// Get returns the cached payload while it is younger than the TTL and
// reloads synchronously otherwise.
func (t *Tier[T]) Get(ctx context.Context) (T, error) {
	if e := t.current.Load(); e != nil && t.fresh(e) {
		t.metrics.CacheLookups.WithLabelValues(t.opts.Name, resultHit).Inc()
		return e.payload, nil
	}
	t.metrics.CacheLookups.WithLabelValues(t.opts.Name, resultMiss).Inc()
	return t.reload(ctx, false)
}

// Refresh reloads the tier regardless of its age.
func (t *Tier[T]) Refresh(ctx context.Context) (T, error) {
	return t.reload(ctx, true)
}

func (t *Tier[T]) fresh(e *entry[T]) bool {
	return t.opts.Clock.Since(e.fetchedAt) < t.opts.TTL
}

// reload runs detached from the caller's cancellation. Its result is shared
// with every waiter and stored for the whole TTL; loaders bound their own duration.
func (t *Tier[T]) reload(ctx context.Context, force bool) (T, error) {
	v, err, _ := t.group.Do(t.opts.Name, func() (any, error) {
		// A reload that finished while this caller waited already satisfies it.
		if e := t.current.Load(); !force && e != nil && t.fresh(e) {
			return e.payload, nil
		}
		return t.load(context.WithoutCancel(ctx))
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (t *Tier[T]) load(ctx context.Context) (T, error) {
	start := t.opts.Clock.Now()
	payload, err := t.opts.Load(ctx)
	t.metrics.CacheReloadDuration.WithLabelValues(t.opts.Name).Observe(t.opts.Clock.Since(start).Seconds())

	prev := t.current.Load()
	switch {
	case err != nil:
		t.metrics.CacheReloads.WithLabelValues(t.opts.Name, outcomeError).Inc()
		if t.opts.KeepStale && prev != nil {
			t.logger.Warn("reload failed, serving previous payload", "error", err)
			t.metrics.CacheLookups.WithLabelValues(t.opts.Name, resultStale).Inc()
			return prev.payload, nil
		}
		var zero T
		return zero, err

	case t.opts.KeepStale && t.opts.Size(payload) == 0:
		t.metrics.CacheReloads.WithLabelValues(t.opts.Name, outcomeEmpty).Inc()
		if prev != nil {
			t.logger.Warn("reload returned no data, serving previous payload")
			t.metrics.CacheLookups.WithLabelValues(t.opts.Name, resultStale).Inc()
			return prev.payload, nil
		}
		return payload, nil
	}

	t.current.Store(&entry[T]{payload: payload, fetchedAt: t.opts.Clock.Now()})
	size := t.opts.Size(payload)
	t.metrics.CacheReloads.WithLabelValues(t.opts.Name, outcomeSuccess).Inc()
	t.metrics.TierSize.WithLabelValues(t.opts.Name).Set(float64(size))
	t.logger.Debug("tier reloaded", "stations", size)

	if t.opts.OnStore != nil {
		t.opts.OnStore(ctx, payload)
	}
	return payload, nil
}
