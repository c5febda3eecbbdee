package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Delivery lifecycle metrics
	DeliveriesCreated   prometheus.Counter
	DeliveriesCompleted prometheus.Counter
	DeliveriesCancelled prometheus.Counter
	VerificationFailed  prometheus.Counter

	// Compartment metrics
	CompartmentsOccupied prometheus.Gauge
	AcquireRejected      prometheus.Counter

	// Notification dispatcher metrics
	AlertsDispatched  prometheus.Counter
	PollCycles        prometheus.Counter
	PollCycleDuration prometheus.Histogram

	// Document store metrics
	StoreOperations *prometheus.CounterVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		DeliveriesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_created_total",
			Help:      "Total number of deliveries created",
		}),
		DeliveriesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_completed_total",
			Help:      "Total number of deliveries completed and archived",
		}),
		DeliveriesCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "deliveries_cancelled_total",
			Help:      "Total number of deliveries cancelled by the sender",
		}),
		VerificationFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "verification_failures_total",
			Help:      "Total number of rejected pickup verification attempts",
		}),
		CompartmentsOccupied: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "compartments_occupied",
			Help:      "Number of robot compartments currently occupied",
		}),
		AcquireRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "compartment_acquire_rejected_total",
			Help:      "Creation attempts rejected because the board was full",
		}),
		AlertsDispatched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "alerts_dispatched_total",
			Help:      "Notifications surfaced to clients",
		}),
		PollCycles: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_poll_cycles_total",
			Help:      "Completed notification poll cycles",
		}),
		PollCycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_poll_duration_seconds",
			Help:      "Time spent per notification poll cycle",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operations_total",
			Help:      "Document store operations by kind and outcome",
		}, []string{"operation", "status"}),
	}
}
