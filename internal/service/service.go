// Package service exposes the station read operations on top of the cache tiers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bluele/gcache"
	"github.com/couchcryptid/ev-station-service/internal/domain"
	"github.com/couchcryptid/ev-station-service/internal/observability"
)

// ErrNotReady is reported by CheckReadiness until the lightweight tier is populated.
var ErrNotReady = errors.New("station data has not been loaded yet")

// StationCache is the read side of the cache manager.
type StationCache interface {
	Stations(ctx context.Context) ([]domain.Station, error)
	Lightweight(ctx context.Context) ([]domain.StationLite, error)
	LiveStatus(ctx context.Context) domain.LiveStatus
	LightweightLoaded() bool
}

// Service answers the station queries served over HTTP.
type Service struct {
	cache   StationCache
	loc     *time.Location
	usage   gcache.Cache
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Service. Usage profiles for dates other than today are
// memoized in an LRU of usageCacheSize entries.
func New(cache StationCache, loc *time.Location, usageCacheSize int, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		cache:   cache,
		loc:     loc,
		usage:   gcache.New(usageCacheSize).LRU().Build(),
		metrics: metrics,
		logger:  logger,
	}
}

// AllStations returns the full merged station list.
func (s *Service) AllStations(ctx context.Context) ([]domain.Station, error) {
	return s.cache.Stations(ctx)
}

// HourlyUsage returns the 24-hour usage profile of a station. An empty or
// invalid date means today. Unknown stations get a profile with a zero live rate.
func (s *Service) HourlyUsage(ctx context.Context, stationID, date string) []domain.HourlyUsage {
	_, resolved := domain.ResolveDate(date, s.loc)
	req := domain.UsageRequest{StationID: stationID, Date: resolved}

	if domain.IsToday(resolved, s.loc) {
		rate := s.cache.LiveStatus(ctx).UsageRate(stationID)
		return domain.EstimateHourlyUsage(req, rate, s.loc)
	}

	key := stationID + "|" + resolved
	if cached, err := s.usage.Get(key); err == nil {
		s.metrics.UsageCache.WithLabelValues("hit").Inc()
		return cached.([]domain.HourlyUsage)
	}
	s.metrics.UsageCache.WithLabelValues("miss").Inc()

	profile := domain.EstimateHourlyUsage(req, 0, s.loc)
	if err := s.usage.Set(key, profile); err != nil {
		s.logger.Warn("usage memo store failed", "station_id", stationID, "error", err)
	}
	return profile
}

// Clusters bins the lightweight stations into the requested grid.
func (s *Service) Clusters(ctx context.Context, req domain.ClusterRequest) ([]domain.Cluster, error) {
	stations, err := s.cache.Lightweight(ctx)
	if err != nil {
		return nil, err
	}
	return domain.ClusterStations(stations, req), nil
}

// Regions counts the lightweight stations per region.
func (s *Service) Regions(ctx context.Context) ([]domain.Region, error) {
	stations, err := s.cache.Lightweight(ctx)
	if err != nil {
		return nil, err
	}
	return domain.CountRegions(stations), nil
}

// CheckReadiness returns nil once the lightweight tier holds station data.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.cache.LightweightLoaded() {
		return ErrNotReady
	}
	return nil
}
