// Package metrics exposes Prometheus collectors for the video gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/video-streaming/pkg/videostream"
)

const namespace = "video_streaming"

// Request outcomes
const (
	OutcomeCompleted   = "completed"
	OutcomeBadRequest  = "bad_request"
	OutcomeNotFound    = "not_found"
	OutcomeLookupError = "lookup_error"
	OutcomeUpstream    = "upstream_unavailable"
	OutcomeAborted     = "aborted"
	OutcomeError       = "error"
)

// Metrics holds the gateway collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	bytesStreamed prometheus.Counter
	lookup        prometheus.Histogram
	notifications *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Video requests by terminal outcome.",
		}, []string{"outcome"}),
		bytesStreamed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_streamed_total",
			Help:      "Body bytes relayed to clients.",
		}),
		lookup: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "metadata_lookup_seconds",
			Help:      "Latency of metadata lookups.",
			Buckets:   prometheus.DefBuckets,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Access event publish attempts by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.requests, m.bytesStreamed, m.lookup, m.notifications)
	return m
}

// RequestFinished records the terminal outcome of a request
func (m *Metrics) RequestFinished(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		m.bytesStreamed.Add(float64(bytes))
	}
}

// LookupObserved records a metadata lookup duration in seconds
func (m *Metrics) LookupObserved(seconds float64) {
	if m == nil {
		return
	}
	m.lookup.Observe(seconds)
}

// ObservePublish matches videostream.PublishObserver
func (m *Metrics) ObservePublish(_ videostream.AccessEvent, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}
