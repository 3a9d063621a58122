package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Direction label values of boundary traffic.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Metrics holds all Prometheus metrics of a runtime
type Metrics struct {
	// Eval metrics
	EvalsTotal   *prometheus.CounterVec
	EvalDuration *prometheus.HistogramVec

	// Callback metrics
	CallbacksTotal   *prometheus.CounterVec
	CallbackDuration prometheus.Histogram

	// Session metrics
	SessionsActive prometheus.Gauge

	// Boundary metrics
	BoundaryBytes *prometheus.CounterVec
}

// NewMetrics registers the runtime metrics on reg. Registering twice on the
// same registry panics, so each runtime gets its own registry unless the
// caller shares one deliberately.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandkasse_evals_total",
				Help: "Total number of evals by requested kind and outcome",
			},
			[]string{"kind", "status"},
		),
		EvalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sandkasse_eval_duration_seconds",
				Help:    "Eval duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
			[]string{"kind"},
		),
		CallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandkasse_callbacks_total",
				Help: "Total number of host callback invocations by outcome",
			},
			[]string{"status"},
		),
		CallbackDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sandkasse_callback_duration_seconds",
				Help:    "Host callback duration in seconds",
				Buckets: []float64{.00001, .0001, .001, .01, .1, 1},
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sandkasse_sessions_active",
				Help: "Number of open sessions",
			},
		),
		BoundaryBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sandkasse_boundary_bytes_total",
				Help: "Bytes copied across the sandbox boundary",
			},
			[]string{"direction"},
		),
	}
}

// RecordEval records an eval
func (m *Metrics) RecordEval(kind string, err error, duration time.Duration) {
	m.EvalsTotal.WithLabelValues(kind, status(err)).Inc()
	m.EvalDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCallback records a host callback invocation
func (m *Metrics) RecordCallback(err error, duration time.Duration) {
	m.CallbacksTotal.WithLabelValues(status(err)).Inc()
	m.CallbackDuration.Observe(duration.Seconds())
}

// AddBoundaryBytes adds traffic in both directions
func (m *Metrics) AddBoundaryBytes(in, out uint64) {
	if in > 0 {
		m.BoundaryBytes.WithLabelValues(DirectionIn).Add(float64(in))
	}
	if out > 0 {
		m.BoundaryBytes.WithLabelValues(DirectionOut).Add(float64(out))
	}
}

// SetSessionsActive sets the number of open sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// Timer measures operation duration
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
