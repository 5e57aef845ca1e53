package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/ev-station-service/internal/domain"
	"github.com/couchcryptid/ev-station-service/internal/observability"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDataset = errors.New("dataset missing")

type fakeCache struct {
	stations  []domain.Station
	lite      []domain.StationLite
	live      domain.LiveStatus
	err       error
	loaded    bool
	liveReads int
}

func (c *fakeCache) Stations(context.Context) ([]domain.Station, error) {
	return c.stations, c.err
}

func (c *fakeCache) Lightweight(context.Context) ([]domain.StationLite, error) {
	return c.lite, c.err
}

func (c *fakeCache) LiveStatus(context.Context) domain.LiveStatus {
	c.liveReads++
	if c.live == nil {
		return domain.LiveStatus{}
	}
	return c.live
}

func (c *fakeCache) LightweightLoaded() bool { return c.loaded }

func newTestService(c StationCache, metrics *observability.Metrics) *Service {
	return New(c, time.UTC, 16, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func TestService_AllStations(t *testing.T) {
	c := &fakeCache{stations: []domain.Station{{ID: "ME1"}, {ID: "ME2"}}}
	got, err := newTestService(c, observability.NewMetricsForTesting()).AllStations(t.Context())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestService_AllStationsPropagatesDatasetError(t *testing.T) {
	c := &fakeCache{err: errDataset}
	_, err := newTestService(c, observability.NewMetricsForTesting()).AllStations(t.Context())
	require.ErrorIs(t, err, errDataset)
}

func TestService_HourlyUsageTodayUsesLiveRate(t *testing.T) {
	freezeClock(t, time.Date(2025, time.March, 10, 9, 15, 0, 0, time.UTC))
	live := domain.LiveStatus{"ME1": {
		{Status: domain.StatusCharging},
		{Status: domain.StatusCharging},
		{Status: domain.StatusAvailable},
		{Status: domain.StatusMaintenance},
	}}
	c := &fakeCache{live: live}
	svc := newTestService(c, observability.NewMetricsForTesting())

	profile := svc.HourlyUsage(t.Context(), "ME1", "")
	require.Len(t, profile, 24)
	assert.Equal(t, 50, profile[9].Usage)
	assert.True(t, profile[9].IsRealtime)
	assert.Equal(t, 1, c.liveReads)
}

func TestService_HourlyUsageUnknownStationTodayHasZeroRate(t *testing.T) {
	freezeClock(t, time.Date(2025, time.March, 10, 23, 0, 0, 0, time.UTC))
	svc := newTestService(&fakeCache{}, observability.NewMetricsForTesting())

	profile := svc.HourlyUsage(t.Context(), "UNKNOWN", "2025-03-10")
	require.Len(t, profile, 24)
	assert.Equal(t, 0, profile[23].Usage)
	assert.True(t, profile[23].IsRealtime)
}

func TestService_HourlyUsageOtherDateIsMemoized(t *testing.T) {
	freezeClock(t, time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	metrics := observability.NewMetricsForTesting()
	c := &fakeCache{}
	svc := newTestService(c, metrics)

	first := svc.HourlyUsage(t.Context(), "ME1", "2025-03-01")
	second := svc.HourlyUsage(t.Context(), "ME1", "2025-03-01")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("memoized profile mismatch (-first +second):\n%s", diff)
	}
	assert.Equal(t, domain.EstimateHourlyUsage(domain.UsageRequest{StationID: "ME1", Date: "2025-03-01"}, 0, time.UTC), first)
	for _, p := range first {
		assert.False(t, p.IsRealtime)
	}
	assert.Zero(t, c.liveReads)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.UsageCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.UsageCache.WithLabelValues("hit")), 0)
}

func TestService_HourlyUsageInvalidDateMeansToday(t *testing.T) {
	freezeClock(t, time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	c := &fakeCache{}
	svc := newTestService(c, observability.NewMetricsForTesting())

	profile := svc.HourlyUsage(t.Context(), "ME1", "not-a-date")
	assert.True(t, profile[12].IsRealtime)
	assert.Equal(t, 1, c.liveReads)
}

func TestService_Clusters(t *testing.T) {
	c := &fakeCache{lite: []domain.StationLite{
		{ID: "A", Lat: 37.50, Lng: 127.00},
		{ID: "B", Lat: 37.52, Lng: 127.02},
		{ID: "C", Lat: 40.00, Lng: 130.00},
	}}
	svc := newTestService(c, observability.NewMetricsForTesting())

	clusters, err := svc.Clusters(t.Context(), domain.ClusterRequest{
		Lat: 37.5, Lng: 127.0, LatDelta: 0.1, LngDelta: 0.1, LatDivisions: 1, LngDivisions: 1,
	})
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, 2, clusters[0].Count)
	assert.InDelta(t, 37.51, clusters[0].Lat, 1e-9)
	assert.InDelta(t, 127.01, clusters[0].Lng, 1e-9)
}

func TestService_ClustersPropagatesDatasetError(t *testing.T) {
	svc := newTestService(&fakeCache{err: errDataset}, observability.NewMetricsForTesting())
	_, err := svc.Clusters(t.Context(), domain.ClusterRequest{LatDivisions: 1, LngDivisions: 1})
	require.ErrorIs(t, err, errDataset)
}

func TestService_Regions(t *testing.T) {
	c := &fakeCache{lite: []domain.StationLite{
		{ID: "A", Address: "서울특별시 중구 세종대로 110"},
		{ID: "B", Address: "서울특별시 강남구 테헤란로 1"},
		{ID: "C", Address: "부산광역시 해운대구 센텀로 1"},
		{ID: "D", Address: ""},
	}}
	regions, err := newTestService(c, observability.NewMetricsForTesting()).Regions(t.Context())
	require.NoError(t, err)
	require.Len(t, regions, 2)
	assert.Equal(t, "서울특별시", regions[0].Name)
	assert.Equal(t, 2, regions[0].Count)
	assert.Equal(t, "부산광역시", regions[1].Name)
	assert.Equal(t, 1, regions[1].Count)
}

func TestService_CheckReadiness(t *testing.T) {
	c := &fakeCache{}
	svc := newTestService(c, observability.NewMetricsForTesting())

	require.ErrorIs(t, svc.CheckReadiness(t.Context()), ErrNotReady)
	c.loaded = true
	require.NoError(t, svc.CheckReadiness(t.Context()))
}
