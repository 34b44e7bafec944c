// Package metrics declares the Prometheus collectors for the booking core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks the latency of booking lifecycle operations
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "homestay_booking_operation_duration_seconds",
			Help: "Duration of booking lifecycle operations in seconds",
			Buckets: []float64{
				0.001, // 1ms
				0.005, // 5ms
				0.01,  // 10ms
				0.025, // 25ms
				0.05,  // 50ms
				0.1,   // 100ms
				0.25,  // 250ms
				0.5,   // 500ms
				1.0,   // 1s
				2.5,   // 2.5s
			},
		},
		[]string{"operation", "status"}, // status: success, invalid, not_found, error
	)

	// Transitions counts committed booking status changes by target status
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestay_booking_transitions_total",
			Help: "Committed booking status transitions",
		},
		[]string{"to"},
	)

	// Expired counts bookings cancelled by the expiry sweep
	Expired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "homestay_booking_expired_total",
			Help: "Bookings cancelled for missing their payment deadline",
		},
	)

	// NotificationFailures counts notifications that could not be delivered
	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestay_notification_failures_total",
			Help: "Booking notifications that failed or were dropped",
		},
		[]string{"kind"},
	)

	// SweepRuns counts expiry sweep runs by result
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "homestay_sweep_runs_total",
			Help: "Expiry sweep runs",
		},
		[]string{"result"},
	)
)

// RecordOperation records the duration of a lifecycle operation
func RecordOperation(operation, status string, seconds float64) {
	OperationDuration.WithLabelValues(operation, status).Observe(seconds)
}

// RecordTransition counts a committed transition into status
func RecordTransition(status string) {
	Transitions.WithLabelValues(status).Inc()
}

// RecordNotificationFailure counts a failed notification of the given kind
func RecordNotificationFailure(kind string) {
	NotificationFailures.WithLabelValues(kind).Inc()
}

// RecordSweep counts one sweep run
func RecordSweep(result string) {
	SweepRuns.WithLabelValues(result).Inc()
}
