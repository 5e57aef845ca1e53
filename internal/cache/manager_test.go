package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/ev-station-service/internal/domain"
	"github.com/couchcryptid/ev-station-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDataset = errors.New("dataset missing")

type fakeSource struct {
	mu         sync.Mutex
	stations   []domain.Station
	lite       []domain.StationLite
	err        error
	fullLoads  int
	lightLoads int
}

func (s *fakeSource) LoadStations(context.Context) ([]domain.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullLoads++
	if s.err != nil {
		return nil, s.err
	}
	// Each load yields a new slice, as a fresh parse does.
	out := make([]domain.Station, len(s.stations))
	copy(out, s.stations)
	return out, nil
}

func (s *fakeSource) LoadLightweight(context.Context) ([]domain.StationLite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lightLoads++
	if s.err != nil {
		return nil, s.err
	}
	return s.lite, nil
}

// fakeFetcher returns each snapshot in order, repeating the last one.
type fakeFetcher struct {
	mu        sync.Mutex
	snapshots []domain.LiveStatus
	calls     int
}

func (f *fakeFetcher) FetchStatuses(context.Context) domain.LiveStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := min(f.calls, len(f.snapshots)-1)
	f.calls++
	return f.snapshots[i]
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePublisher struct {
	published chan domain.LiveStatus
	err       error
}

func (p *fakePublisher) PublishSnapshot(_ context.Context, live domain.LiveStatus) error {
	p.published <- live
	return p.err
}

func liveFor(stationID string, statuses ...string) domain.LiveStatus {
	details := make([]domain.ChargerDetail, len(statuses))
	for i, s := range statuses {
		details[i] = domain.ChargerDetail{
			Speed:       domain.SpeedFast,
			ChargerType: "DC Combo",
			Status:      s,
			ChargerID:   stationID + "-0" + string(rune('1'+i)),
		}
	}
	live := domain.LiveStatus{stationID: details}
	live.Summarize()
	return live
}

func newTestManager(clock clockwork.Clock, src StationSource, fetcher StatusFetcher, metrics *observability.Metrics, pub SnapshotPublisher) *Manager {
	return NewManager(src, fetcher, Options{
		StationsTTL:   5 * time.Minute,
		LiveStatusTTL: time.Minute,
		Clock:         clock,
		IntN:          func(int) int { return 10 },
		Publisher:     pub,
	}, metrics, testLogger())
}

func TestManager_StationsMergesLiveAndSynthesizes(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	src := &fakeSource{stations: []domain.Station{
		{ID: "ME1", ChargerType: "DC Combo"},
		{ID: "ME2", ChargerType: "AC slow"},
	}}
	fetcher := &fakeFetcher{snapshots: []domain.LiveStatus{liveFor("ME1", domain.StatusCharging, domain.StatusAvailable)}}
	m := newTestManager(testClock(), src, fetcher, metrics, nil)

	stations, err := m.Stations(t.Context())
	require.NoError(t, err)
	require.Len(t, stations, 2)

	assert.Equal(t, "1/2 charging", stations[0].Status)
	assert.Len(t, stations[0].Chargers, 2)

	// Draw 10 is below the available threshold for the single synthetic port.
	assert.Equal(t, "1/1 available", stations[1].Status)
	require.Len(t, stations[1].Chargers, 1)
	assert.Equal(t, "ME2-01", stations[1].Chargers[0].ChargerID)
	assert.Equal(t, domain.SpeedSlow, stations[1].Chargers[0].Speed)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.StationsSynthesized), 0)
}

func TestManager_StationsCachedWithinTTL(t *testing.T) {
	clock := testClock()
	src := &fakeSource{stations: []domain.Station{{ID: "ME1", ChargerType: "AC slow"}}}
	fetcher := &fakeFetcher{snapshots: []domain.LiveStatus{{}}}
	m := newTestManager(clock, src, fetcher, observability.NewMetricsForTesting(), nil)

	first, err := m.Stations(t.Context())
	require.NoError(t, err)
	clock.Advance(4 * time.Minute)
	second, err := m.Stations(t.Context())
	require.NoError(t, err)

	assert.Same(t, &first[0], &second[0])
	assert.Equal(t, 1, src.fullLoads)

	clock.Advance(time.Minute)
	_, err = m.Stations(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, src.fullLoads)
}

func TestManager_StationsDatasetErrorIsFatal(t *testing.T) {
	src := &fakeSource{err: errDataset}
	m := newTestManager(testClock(), src, &fakeFetcher{snapshots: []domain.LiveStatus{{}}}, observability.NewMetricsForTesting(), nil)

	_, err := m.Stations(t.Context())
	require.ErrorIs(t, err, errDataset)

	_, err = m.Lightweight(t.Context())
	require.ErrorIs(t, err, errDataset)
}

func TestManager_LiveStatusServesPreviousSnapshotOnEmptyRefresh(t *testing.T) {
	clock := testClock()
	good := liveFor("ME1", domain.StatusCharging)
	fetcher := &fakeFetcher{snapshots: []domain.LiveStatus{good, {}}}
	m := newTestManager(clock, &fakeSource{}, fetcher, observability.NewMetricsForTesting(), nil)

	assert.Equal(t, good, m.LiveStatus(t.Context()))

	clock.Advance(time.Minute)
	assert.Equal(t, good, m.LiveStatus(t.Context()))
	assert.Equal(t, 2, fetcher.count())
}

func TestManager_LiveStatusEmptyWithoutSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{snapshots: []domain.LiveStatus{{}}}
	m := newTestManager(testClock(), &fakeSource{}, fetcher, observability.NewMetricsForTesting(), nil)

	live := m.LiveStatus(t.Context())
	require.NotNil(t, live)
	assert.Empty(t, live)
}

func TestManager_Warmup(t *testing.T) {
	src := &fakeSource{lite: []domain.StationLite{{ID: "ME1"}}}
	m := newTestManager(testClock(), src, &fakeFetcher{snapshots: []domain.LiveStatus{{}}}, observability.NewMetricsForTesting(), nil)

	assert.False(t, m.LightweightLoaded())
	m.Warmup(t.Context())
	assert.True(t, m.LightweightLoaded())

	_, err := m.Lightweight(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, src.lightLoads)
}

func TestManager_WarmupFailureIsIgnored(t *testing.T) {
	src := &fakeSource{err: errDataset}
	m := newTestManager(testClock(), src, &fakeFetcher{snapshots: []domain.LiveStatus{{}}}, observability.NewMetricsForTesting(), nil)

	m.Warmup(t.Context())
	assert.False(t, m.LightweightLoaded())
}

func TestManager_PublishesStoredLiveSnapshots(t *testing.T) {
	clock := testClock()
	good := liveFor("ME1", domain.StatusAvailable)
	pub := &fakePublisher{published: make(chan domain.LiveStatus, 4), err: errors.New("broker down")}
	fetcher := &fakeFetcher{snapshots: []domain.LiveStatus{good, {}}}
	m := newTestManager(clock, &fakeSource{}, fetcher, observability.NewMetricsForTesting(), pub)

	m.LiveStatus(t.Context())
	select {
	case got := <-pub.published:
		assert.Equal(t, good, got)
	case <-time.After(time.Second):
		t.Fatal("snapshot was not published")
	}

	// An empty refresh keeps the previous snapshot and publishes nothing.
	clock.Advance(time.Minute)
	m.LiveStatus(t.Context())
	select {
	case <-pub.published:
		t.Fatal("empty refresh must not be published")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_RunLiveRefresh(t *testing.T) {
	clock := testClock()
	fetcher := &fakeFetcher{snapshots: []domain.LiveStatus{liveFor("ME1", domain.StatusCharging)}}
	m := newTestManager(clock, &fakeSource{}, fetcher, observability.NewMetricsForTesting(), nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		m.RunLiveRefresh(ctx, 30*time.Second)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return fetcher.count() == 1 }, time.Second, 5*time.Millisecond)

	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool { return fetcher.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresher did not stop")
	}
}

// contextFetcher fails the way a real HTTP client does once ctx is done.
type contextFetcher struct {
	live domain.LiveStatus
}

func (f contextFetcher) FetchStatuses(ctx context.Context) domain.LiveStatus {
	if ctx.Err() != nil {
		return domain.LiveStatus{}
	}
	return f.live
}

func TestManager_StationsReloadIgnoresCallerCancellation(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	src := &fakeSource{stations: []domain.Station{{ID: "ST1", ChargerType: "DC Combo"}}}
	fetcher := contextFetcher{live: liveFor("ST1", domain.StatusCharging)}
	m := newTestManager(testClock(), src, fetcher, metrics, nil)

	canceled, cancel := context.WithCancel(t.Context())
	cancel()

	stations, err := m.Stations(canceled)
	require.NoError(t, err)
	require.Len(t, stations, 1)
	assert.Equal(t, "1/1 charging", stations[0].Status)

	stations, err = m.Stations(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "1/1 charging", stations[0].Status)
	assert.Equal(t, "ST1-01", stations[0].Chargers[0].ChargerID)
	assert.Equal(t, 1, src.fullLoads)
	assert.Zero(t, testutil.ToFloat64(metrics.StationsSynthesized))
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
	calls   chan struct{}
}

func (p *blockingPublisher) PublishSnapshot(context.Context, domain.LiveStatus) error {
	p.calls <- struct{}{}
	close(p.started)
	<-p.release
	return nil
}

func TestManager_CloseWaitsForInFlightPublish(t *testing.T) {
	clock := testClock()
	pub := &blockingPublisher{
		started: make(chan struct{}),
		release: make(chan struct{}),
		calls:   make(chan struct{}, 4),
	}
	fetcher := &fakeFetcher{snapshots: []domain.LiveStatus{liveFor("ME1", domain.StatusAvailable)}}
	m := newTestManager(clock, &fakeSource{}, fetcher, observability.NewMetricsForTesting(), pub)

	m.LiveStatus(t.Context())
	<-pub.started

	closed := make(chan struct{})
	go func() {
		m.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while a publish was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(pub.release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the publish finished")
	}

	// Stored payloads after Close are not published.
	clock.Advance(time.Minute)
	m.LiveStatus(t.Context())
	assert.Equal(t, 2, fetcher.count())
	assert.Len(t, pub.calls, 1)
}
