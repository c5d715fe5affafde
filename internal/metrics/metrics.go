// Package metrics exposes Prometheus instruments for the incremental transport.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gqlstream"

// Request outcomes.
const (
	OutcomeFinished    = "finished"
	OutcomeHTTPError   = "http_error"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

type Metrics struct {
	requests       *prometheus.CounterVec
	payloads       prometheus.Counter
	malformed      prometheus.Counter
	dropped        prometheus.Counter
	streamDuration *prometheus.HistogramVec
	firstPayload   prometheus.Histogram
}

// New registers the transport instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of GraphQL requests by outcome",
			},
			[]string{"outcome"},
		),
		payloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_merged_total",
			Help:      "Total number of payloads merged into cumulative results",
		}),
		malformed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_parts_total",
			Help:      "Total number of multipart parts ignored because their body was not valid JSON",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_dropped_total",
			Help:      "Total number of snapshots discarded because a consumer fell behind",
		}),
		streamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stream_duration_seconds",
				Help:      "Time from sending the request until the stream terminated",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		firstPayload: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_payload_seconds",
			Help:      "Time from sending the request until the first snapshot was emitted",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Finished records a terminated request.
func (m *Metrics) Finished(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.streamDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) FirstPayload(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.firstPayload.Observe(elapsed.Seconds())
}

func (m *Metrics) PayloadMerged() {
	if m == nil {
		return
	}
	m.payloads.Inc()
}

func (m *Metrics) MalformedPart() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) SnapshotDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
