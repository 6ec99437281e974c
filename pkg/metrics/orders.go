package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lankamart"

// CheckoutMetrics tracks checkout attempts and their outcomes.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout collectors on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "duration_seconds",
		Help:      "Duration of checkout transactions in seconds.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(attempts, duration)
	return &CheckoutMetrics{attempts: attempts, duration: duration}
}

// IncOutcome increments the attempt counter for the given outcome label.
func (m *CheckoutMetrics) IncOutcome(outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveDuration records how long the checkout transaction took.
func (m *CheckoutMetrics) ObserveDuration(duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
}

// OrderMetrics tracks order state transitions.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
}

// NewOrderMetrics registers the order transition counter.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "transitions_total",
		Help:      "Order status transitions by source and target.",
	}, []string{"from", "to"})
	reg.MustRegister(transitions)
	return &OrderMetrics{transitions: transitions}
}

// IncTransition records one transition between order statuses.
func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
