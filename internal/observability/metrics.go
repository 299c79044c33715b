package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "conagua_etl"

// Metrics holds the Prometheus counters and histograms for the ETL pipeline.
type Metrics struct {
	// Fetch metrics.
	ArchivesFetched *prometheus.CounterVec // labels: outcome={ok,not_found,transport,error}
	FetchDuration   prometheus.Histogram
	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss,error}
	CacheEvictions  prometheus.Counter

	// Parse metrics.
	MembersExtracted prometheus.Counter
	RecordsParsed    *prometheus.CounterVec // labels: kind
	ParseWarnings    *prometheus.CounterVec // labels: kind

	// Forecast metrics.
	ForecastMerges *prometheus.CounterVec // labels: outcome={merged,unavailable}

	// Pipeline metrics.
	KeysProcessed    *prometheus.CounterVec // labels: outcome (see domain.FailureKind)
	PipelineDuration prometheus.Histogram
	RecordsExported  prometheus.Counter
}

func newMetrics() *Metrics {
	return &Metrics{
		ArchivesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archives_fetched_total",
			Help:      "Portal archive requests by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Portal archive request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Archive cache lookups by result.",
		}, []string{"result"}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Cached archives dropped after failing to extract.",
		}),
		MembersExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "members_extracted_total",
			Help:      "Files extracted from archives.",
		}),
		RecordsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Measurement records parsed by kind.",
		}, []string{"kind"}),
		ParseWarnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_warnings_total",
			Help:      "Row-level parse warnings by kind.",
		}, []string{"kind"}),
		ForecastMerges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_merges_total",
			Help:      "Current-year precipitation datasets offered a forecast, by outcome.",
		}, []string{"outcome"}),
		KeysProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keys_processed_total",
			Help:      "Archive keys processed by outcome.",
		}, []string{"outcome"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of one fetch-extract-parse-normalize-filter run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		RecordsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_exported_total",
			Help:      "Records written by exporters.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ArchivesFetched,
		m.FetchDuration,
		m.CacheLookups,
		m.CacheEvictions,
		m.MembersExtracted,
		m.RecordsParsed,
		m.ParseWarnings,
		m.ForecastMerges,
		m.KeysProcessed,
		m.PipelineDuration,
		m.RecordsExported,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
