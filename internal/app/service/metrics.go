package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "chonker"

// Metrics holds the domain counters exported on /metrics.
type Metrics struct {
	CodesIssued          prometheus.Counter
	CodeCollisions       prometheus.Counter
	URLsCreated          *prometheus.CounterVec
	CSVRowsSkipped       *prometheus.CounterVec
	ClicksRecorded       prometheus.Counter
	ClickRecordFailures  prometheus.Counter
	EventsPublished      *prometheus.CounterVec
	EventPublishFailures *prometheus.CounterVec
	EventsObserved       *prometheus.CounterVec
}

// NewMetrics registers the counters on reg. A nil reg gets a private registry,
// which keeps tests from colliding on the default one.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		CodesIssued: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "codes_issued_total",
			Help:      "Short codes handed out.",
		}),
		CodeCollisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "code_collisions_total",
			Help:      "Sampled short codes that were already taken.",
		}),
		URLsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "urls_created_total",
			Help:      "Shortened URLs persisted, by submission source.",
		}, []string{"source"}),
		CSVRowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "csv_rows_skipped_total",
			Help:      "CSV rows ignored during ingestion, by reason.",
		}, []string{"reason"}),
		ClicksRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "clicks_recorded_total",
			Help:      "Click events persisted.",
		}),
		ClickRecordFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "click_record_failures_total",
			Help:      "Redirects served without a click event.",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_published_total",
			Help:      "Domain events acknowledged by the stream.",
		}, []string{"subject"}),
		EventPublishFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "event_publish_failures_total",
			Help:      "Domain events that could not be published.",
		}, []string{"subject"}),
		EventsObserved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_observed_total",
			Help:      "Domain events read back by the event tap.",
		}, []string{"subject"}),
	}
}

func metricsOrDefault(m *Metrics) *Metrics {
	if m == nil {
		return NewMetrics(nil)
	}
	return m
}
