package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics registry and standard meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	BytesProcessed    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	CallsTotal        *prometheus.CounterVec
	EventsTotal       *prometheus.CounterVec
	SubscriberDrops   prometheus.Counter
	Subscribers       prometheus.Gauge
}

// NewMetrics creates a custom Prometheus registry with standard ledger metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arc_ledger_operation_duration_seconds",
		Help:    "Duration of operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arc_ledger_operation_total",
		Help: "Total number of operations.",
	}, []string{"operation", "status"})

	bytesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arc_ledger_bytes_processed_total",
		Help: "Total bytes processed.",
	}, []string{"direction"})

	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arc_ledger_errors_total",
		Help: "Total number of errors.",
	}, []string{"operation", "type"})

	callsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arc_ledger_calls_total",
		Help: "Dispatched calls by kind and outcome.",
	}, []string{"kind", "status"})

	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arc_ledger_events_total",
		Help: "Committed events by kind.",
	}, []string{"kind"})

	drops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arc_ledger_subscriber_drops_total",
		Help: "Events dropped because a subscriber buffer was full.",
	})

	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arc_ledger_subscribers",
		Help: "Active event subscriptions.",
	})

	reg.MustRegister(opDuration, opTotal, bytesProcessed, errorsTotal, callsTotal, eventsTotal, drops, subscribers)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		BytesProcessed:    bytesProcessed,
		ErrorsTotal:       errorsTotal,
		CallsTotal:        callsTotal,
		EventsTotal:       eventsTotal,
		SubscriberDrops:   drops,
		Subscribers:       subscribers,
	}
}
