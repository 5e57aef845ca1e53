package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ev_station"

// Metrics holds the Prometheus counters, histograms, and gauges for the station service.
type Metrics struct {
	// Cache tier metrics.
	CacheLookups        *prometheus.CounterVec   // labels: tier, result={hit,miss,stale}
	CacheReloads        *prometheus.CounterVec   // labels: tier, outcome={success,error,empty}
	CacheReloadDuration *prometheus.HistogramVec // labels: tier
	TierSize            *prometheus.GaugeVec     // labels: tier

	// Live feed metrics.
	LiveFeedRequests    *prometheus.CounterVec // labels: outcome={success,error,non_ok,decode_error}
	LiveFeedDuration    prometheus.Histogram
	StationsSynthesized prometheus.Counter

	// Usage profile memo.
	UsageCache *prometheus.CounterVec // labels: result={hit,miss}

	// Status snapshot publishing.
	SnapshotsPublished prometheus.Counter
	PublishErrors      prometheus.Counter
	PublisherEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewMetricsForTesting()
	prometheus.MustRegister(
		m.CacheLookups,
		m.CacheReloads,
		m.CacheReloadDuration,
		m.TierSize,
		m.LiveFeedRequests,
		m.LiveFeedDuration,
		m.StationsSynthesized,
		m.UsageCache,
		m.SnapshotsPublished,
		m.PublishErrors,
		m.PublisherEnabled,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache tier lookups by tier and result.",
		}, []string{"tier", "result"}),
		CacheReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_reloads_total",
			Help:      "Cache tier reloads by tier and outcome.",
		}, []string{"tier", "outcome"}),
		CacheReloadDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cache_reload_duration_seconds",
			Help:      "Duration of a cache tier reload.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"tier"}),
		TierSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_tier_entries",
			Help:      "Number of stations held by each cache tier.",
		}, []string{"tier"}),
		LiveFeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_feed_requests_total",
			Help:      "Live status feed requests by outcome.",
		}, []string{"outcome"}),
		LiveFeedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_feed_duration_seconds",
			Help:      "Live status feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		StationsSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_synthesized_total",
			Help:      "Stations given synthetic charger statuses because the live feed had no entry.",
		}),
		UsageCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_cache_total",
			Help:      "Usage profile memo lookups by result.",
		}, []string{"result"}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_snapshots_published_total",
			Help:      "Station status messages written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_publish_errors_total",
			Help:      "Failed status snapshot publishes.",
		}),
		PublisherEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "status_publisher_enabled",
			Help:      "1 when live status snapshots are published to Kafka, 0 otherwise.",
		}),
	}
}
