package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Metrics holds the Prometheus collectors for ingestion and question answering.
// A nil *Metrics is valid and records nothing.
//
// Metrics:
//   - edubot_ingestions_total{kind,result}
//   - edubot_ingest_stage_duration_seconds{stage}
//   - edubot_indexed_chunks
//   - edubot_queries_total{result}
//   - edubot_query_duration_seconds
type Metrics struct {
	IngestionsTotal *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	IndexedChunks   prometheus.Gauge
	QueriesTotal    *prometheus.CounterVec
	QueryDuration   prometheus.Histogram
}

// Default returns metrics registered once with the default Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// New registers a fresh set of collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		IngestionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edubot_ingestions_total",
				Help: "Total number of ingestion runs",
			},
			[]string{"kind", "result"}, // kind: urls|files, result: ok|input_error|load_error|service_error|error
		),
		StageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edubot_ingest_stage_duration_seconds",
				Help:    "Time spent reaching each ingestion stage",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
		IndexedChunks: f.NewGauge(prometheus.GaugeOpts{
			Name: "edubot_indexed_chunks",
			Help: "Number of chunks in the current index",
		}),
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edubot_queries_total",
				Help: "Total number of questions asked",
			},
			[]string{"result"}, // ok|no_index|input_error|service_error|error
		),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "edubot_query_duration_seconds",
			Help:    "End-to-end question answering latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}
}

func (m *Metrics) RecordIngestion(kind, result string) {
	if m == nil {
		return
	}
	m.IngestionsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) SetIndexedChunks(n int) {
	if m == nil {
		return
	}
	m.IndexedChunks.Set(float64(n))
}

func (m *Metrics) RecordQuery(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(result).Inc()
	m.QueryDuration.Observe(d.Seconds())
}
