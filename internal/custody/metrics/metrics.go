package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the custody ledger.
type Metrics struct {
	// Ledger operations by operation and outcome (ok, or the error code)
	Transitions *prometheus.CounterVec

	TransitionLatency *prometheus.HistogramVec

	// Pending rows past the overdue threshold, refreshed by the overdue report
	Overdue prometheus.Gauge

	NotifyFailures prometheus.Counter
}

// New creates the custody metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zimmet_custody_operations_total",
			Help: "Custody ledger operations by operation and outcome",
		}, []string{"operation", "outcome"}),

		TransitionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zimmet_custody_operation_duration_seconds",
			Help:    "Duration of custody ledger operations including the unit of work",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		Overdue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "zimmet_custody_overdue_pending",
			Help: "Pending custody transactions older than the overdue threshold",
		}),

		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "zimmet_custody_notify_failures_total",
			Help: "Wake-up notifications that could not be delivered",
		}),
	}
}

// ObserveOperation records one finished ledger operation.
func (m *Metrics) ObserveOperation(operation, outcome string, d time.Duration) {
	if m != nil {
		m.Transitions.WithLabelValues(operation, outcome).Inc()
		m.TransitionLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// SetOverdue records the current overdue count.
func (m *Metrics) SetOverdue(n int) {
	if m != nil {
		m.Overdue.Set(float64(n))
	}
}

// IncrementNotifyFailure counts a swallowed notification error.
func (m *Metrics) IncrementNotifyFailure() {
	if m != nil {
		m.NotifyFailures.Inc()
	}
}
