package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hazard"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion.
type Metrics struct {
	// Per-source ingestion metrics. Label: source.
	RecordsFetched   *prometheus.CounterVec
	RecordsMalformed *prometheus.CounterVec
	RecordsDropped   *prometheus.CounterVec // labels: source, reason={missing_field,invalid_field}
	RecordsExcluded  *prometheus.CounterVec
	RecordsStored    *prometheus.CounterVec
	SourceFailures   *prometheus.CounterVec   // labels: source, kind={transport,parse,persistence}
	SourceDuration   *prometheus.HistogramVec // label: source

	// Scheduler metrics.
	CycleDuration    prometheus.Histogram
	CyclesSkipped    *prometheus.CounterVec // label: trigger={timer,on_demand}
	SchedulerRunning prometheus.Gauge

	// Side-channel metrics.
	PublishErrors prometheus.Counter
	ArchiveErrors prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec   // labels: method={reverse}, outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec   // labels: method={reverse}, result={hit,miss}
	GeocodeAPIDuration *prometheus.HistogramVec // labels: method={reverse}
	GeocodeEnabled     prometheus.Gauge
	GeocodeSkipped     *prometheus.CounterVec // labels: source, reason={stored,limit}
}

// NewMetrics creates and registers all ingestion metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Raw records parsed from upstream payloads.",
		}, []string{"source"}),
		RecordsMalformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_malformed_total",
			Help:      "Upstream records the parser could not read.",
		}, []string{"source"}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records dropped during normalization.",
		}, []string{"source", "reason"}),
		RecordsExcluded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_excluded_total",
			Help:      "Records excluded as non tsunami candidates.",
		}, []string{"source"}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_stored_total",
			Help:      "Records inserted or refreshed in the store.",
		}, []string{"source"}),
		SourceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Ingestion failures by source and failure kind.",
		}, []string{"source", "kind"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Duration of one source's fetch-normalize-upsert pass.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete ingestion cycle across all sources.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		CyclesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_skipped_total",
			Help:      "Cycle triggers skipped because a cycle was already running.",
		}, []string{"trigger"}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 while an ingestion cycle is in flight, 0 when idle.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Stored records that could not be published to the change feed.",
		}),
		ArchiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Raw payloads that could not be archived.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by method and result.",
		}, []string{"method", "result"}),
		GeocodeAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
		GeocodeSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_skipped_total",
			Help:      "Records left with their coordinate place, by source and reason.",
		}, []string{"source", "reason"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RecordsFetched,
		m.RecordsMalformed,
		m.RecordsDropped,
		m.RecordsExcluded,
		m.RecordsStored,
		m.SourceFailures,
		m.SourceDuration,
		m.CycleDuration,
		m.CyclesSkipped,
		m.SchedulerRunning,
		m.PublishErrors,
		m.ArchiveErrors,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.GeocodeSkipped,
	}
}
