package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of events successfully published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of event deliveries that failed and were retried or parked.",
	})

	droppedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_dropped_total",
		Help:      "Events discarded because the queue was full or the payload could not be encoded.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent delivering outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	deadLetterCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_dead_lettered_total",
		Help:      "Events parked after exhausting delivery attempts, labeled by event type.",
	}, []string{"event_type"})

	requeuedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "events_requeued_total",
		Help:      "Dead letters moved back onto the delivery queue.",
	})

	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "queue_depth",
		Help:      "Events waiting for delivery.",
	})

	deadLetterGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "outbox",
		Name:      "dead_letters",
		Help:      "Events currently parked.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, droppedCounter, batchDuration, deadLetterCounter, requeuedCounter, queueDepth, deadLetterGauge)
}
