package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pointsAccepted *prometheus.CounterVec
	pointsRejected *prometheus.CounterVec
	windowsClosed  *prometheus.CounterVec
	messagesSent   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg. Tests pass a fresh
// prometheus.NewRegistry() to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		pointsAccepted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finseries_points_accepted_total",
				Help: "Total number of data points accepted per series",
			},
			[]string{"series"},
		),
		pointsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finseries_points_rejected_total",
				Help: "Total number of data points rejected by reason",
			},
			[]string{"reason"},
		),
		windowsClosed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finseries_windows_closed_total",
				Help: "Total number of closed windows per series and granularity",
			},
			[]string{"series", "granularity", "filler"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finseries_messages_sent_total",
				Help: "Total number of closed windows sent to backend",
			},
			[]string{"backend", "series"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finseries_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finseries_last_value",
				Help: "Last accepted value for a series",
			},
			[]string{"series"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finseries_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPointAccepted counts an accepted data point.
func (r *Recorder) RecordPointAccepted(seriesID string) {
	r.pointsAccepted.WithLabelValues(seriesID).Inc()
}

// RecordPointRejected counts a rejected data point.
func (r *Recorder) RecordPointRejected(reason string) {
	r.pointsRejected.WithLabelValues(reason).Inc()
}

// RecordWindowClosed counts a finalized or synthesized window.
func (r *Recorder) RecordWindowClosed(seriesID, granularity string, filler bool) {
	r.windowsClosed.WithLabelValues(seriesID, granularity, strconv.FormatBool(filler)).Inc()
}

// RecordMessageSent records a window sent to a backend.
func (r *Recorder) RecordMessageSent(backend, seriesID string) {
	r.messagesSent.WithLabelValues(backend, seriesID).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last accepted value for a series.
func (r *Recorder) RecordLastPrice(seriesID string, price float64) {
	r.lastPrice.WithLabelValues(seriesID).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
