package cache

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/couchcryptid/ev-station-service/internal/domain"
	"github.com/couchcryptid/ev-station-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Tier names, also used as metric labels.
const (
	TierStations    = "stations"
	TierLightweight = "lightweight"
	TierLiveStatus  = "live_status"
)

// publishTimeout bounds a snapshot publish started from a live reload.
const publishTimeout = 10 * time.Second

// StationSource provides the bulk dataset in both projections.
type StationSource interface {
	LoadStations(ctx context.Context) ([]domain.Station, error)
	LoadLightweight(ctx context.Context) ([]domain.StationLite, error)
}

// StatusFetcher provides the live charger status map. Failures surface as an
// empty map.
type StatusFetcher interface {
	FetchStatuses(ctx context.Context) domain.LiveStatus
}

// SnapshotPublisher receives every live status map stored by the live tier.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, live domain.LiveStatus) error
}

// Options configures a Manager.
type Options struct {
	StationsTTL   time.Duration
	LiveStatusTTL time.Duration
	Clock         clockwork.Clock

	// IntN draws synthetic charger statuses. Defaults to math/rand/v2.
	IntN domain.IntN

	// Publisher is optional.
	Publisher SnapshotPublisher
}

// Manager owns the three cache tiers: the full merged station list, the
// lightweight projection and the live status map.
type Manager struct {
	stations    *Tier[[]domain.Station]
	lightweight *Tier[[]domain.StationLite]
	live        *Tier[domain.LiveStatus]

	source    StationSource
	fetcher   StatusFetcher
	publisher SnapshotPublisher
	intn      domain.IntN
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger

	// Guards in-flight snapshot publishes against Close.
	mu         sync.Mutex
	closed     bool
	publishing sync.WaitGroup
}

// NewManager creates a Manager with empty tiers.
func NewManager(source StationSource, fetcher StatusFetcher, opts Options, metrics *observability.Metrics, logger *slog.Logger) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}

	m := &Manager{
		source:    source,
		fetcher:   fetcher,
		publisher: opts.Publisher,
		intn:      opts.IntN,
		clock:     opts.Clock,
		metrics:   metrics,
		logger:    logger,
	}

	m.stations = NewTier(TierOptions[[]domain.Station]{
		Name:  TierStations,
		TTL:   opts.StationsTTL,
		Clock: opts.Clock,
		Load:  m.loadStations,
		Size:  func(s []domain.Station) int { return len(s) },
	}, metrics, logger)

	m.lightweight = NewTier(TierOptions[[]domain.StationLite]{
		Name:  TierLightweight,
		TTL:   opts.StationsTTL,
		Clock: opts.Clock,
		Load:  source.LoadLightweight,
		Size:  func(s []domain.StationLite) int { return len(s) },
	}, metrics, logger)

	liveOpts := TierOptions[domain.LiveStatus]{
		Name:      TierLiveStatus,
		TTL:       opts.LiveStatusTTL,
		Clock:     opts.Clock,
		Load:      m.loadLiveStatus,
		Size:      func(l domain.LiveStatus) int { return len(l) },
		KeepStale: true,
	}
	if m.publisher != nil {
		liveOpts.OnStore = m.publish
	}
	m.live = NewTier(liveOpts, metrics, logger)

	return m
}

// Stations returns the full merged station list. A dataset failure is returned
// as an error.
func (m *Manager) Stations(ctx context.Context) ([]domain.Station, error) {
	return m.stations.Get(ctx)
}

// Lightweight returns the id/name/addr/lat/lng projection.
func (m *Manager) Lightweight(ctx context.Context) ([]domain.StationLite, error) {
	return m.lightweight.Get(ctx)
}

// LiveStatus returns the live status map, the last good snapshot when the
// feed fails, or an empty map when no snapshot exists yet.
func (m *Manager) LiveStatus(ctx context.Context) domain.LiveStatus {
	live, err := m.live.Get(ctx)
	if err != nil || live == nil {
		return domain.LiveStatus{}
	}
	return live
}

// LightweightLoaded reports whether the lightweight tier has been populated.
func (m *Manager) LightweightLoaded() bool {
	return m.lightweight.Loaded()
}

// Warmup populates the lightweight tier. Failures are logged and otherwise ignored.
func (m *Manager) Warmup(ctx context.Context) {
	start := m.clock.Now()
	stations, err := m.lightweight.Get(ctx)
	if err != nil {
		m.logger.Warn("cache warm-up failed", "tier", TierLightweight, "error", err)
		return
	}
	m.logger.Info("cache warm-up complete",
		"tier", TierLightweight,
		"stations", len(stations),
		"duration", m.clock.Since(start),
	)
}

// RunLiveRefresh reloads the live tier every interval until ctx is cancelled.
// The stale-on-failure rule of the tier applies to every refresh.
func (m *Manager) RunLiveRefresh(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("live status refresher started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("live status refresher stopping", "reason", ctx.Err())
			return
		case <-ticker.Chan():
			live, _ := m.live.Refresh(ctx)
			m.logger.Debug("live status refreshed", "stations", len(live))
		}
	}
}

func (m *Manager) loadStations(ctx context.Context) ([]domain.Station, error) {
	stations, err := m.source.LoadStations(ctx)
	if err != nil {
		m.logger.Error("station dataset load failed", "error", err)
		return nil, err
	}
	live := m.LiveStatus(ctx)
	synthesized := domain.MergeLiveStatus(stations, live, m.intn)
	m.metrics.StationsSynthesized.Add(float64(synthesized))
	if synthesized > 0 {
		m.logger.Debug("synthesized charger statuses", "stations", synthesized, "live_stations", len(live))
	}
	return stations, nil
}

func (m *Manager) loadLiveStatus(ctx context.Context) (domain.LiveStatus, error) {
	return m.fetcher.FetchStatuses(ctx), nil
}

// Close stops accepting snapshot publishes and waits for those in flight.
// Call it before closing the publisher.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.publishing.Wait()
}

func (m *Manager) publish(ctx context.Context, live domain.LiveStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.logger.Debug("manager closed, snapshot not published", "stations", len(live))
		return
	}
	m.publishing.Add(1)
	go func() {
		defer m.publishing.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := m.publisher.PublishSnapshot(ctx, live); err != nil {
			m.logger.Warn("publish live status snapshot failed", "error", err)
		}
	}()
}
