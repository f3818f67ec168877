package relay

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes recorded by Metrics.
const (
	outcomeOK        = "ok"
	outcomeHostError = "host_error"
	outcomeClosed    = "closed"
	outcomeCancelled = "cancelled"
	outcomeReentrant = "reentrant"
)

// Metrics collects relay counters. A nil *Metrics records nothing.
type Metrics struct {
	requests     *prometheus.CounterVec
	callDuration prometheus.Histogram
	executions   *prometheus.CounterVec
	queueDepth   prometheus.Gauge
}

// NewMetrics creates the relay collectors and registers them with reg, if
// reg is non-nil. It panics if registration fails, as prometheus.MustRegister
// does.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayframe",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Host call requests by outcome.",
		}, []string{"outcome"}),
		callDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relayframe",
			Subsystem: "relay",
			Name:      "host_call_seconds",
			Help:      "Time spent inside host calls on the dispatcher goroutine.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relayframe",
			Subsystem: "relay",
			Name:      "executions_total",
			Help:      "Finished executions by terminal state.",
		}, []string{"state"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relayframe",
			Subsystem: "relay",
			Name:      "queue_depth",
			Help:      "Requests waiting when the dispatcher last woke.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.callDuration, m.executions, m.queueDepth)
	}
	return m
}

func (m *Metrics) request(outcome string) {
	if m != nil {
		m.requests.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) hostCall(d time.Duration) {
	if m != nil {
		m.callDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) execution(s State) {
	if m != nil {
		m.executions.WithLabelValues(s.String()).Inc()
	}
}

func (m *Metrics) depth(n int) {
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}
