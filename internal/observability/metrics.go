// Package observability holds the prometheus collectors for the tracker.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	stepsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "session",
		Name:      "steps_detected_total",
		Help:      "Steps accepted by the step detector across all sessions.",
	})
	sessionsFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "session",
		Name:      "finished_total",
		Help:      "Tracked sessions converted into activity records, by activity type.",
	}, []string{"activity_type"})

	writeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "persistence",
		Name:      "write_failures_total",
		Help:      "Write-through failures by storage key. In-memory state stays authoritative.",
	}, []string{"key"})
	readFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittrack",
		Subsystem: "persistence",
		Name:      "read_failures_total",
		Help:      "Keys that could not be hydrated at startup and fell back to defaults.",
	}, []string{"key"})
	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity history write.",
	})

	dailyStepsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "aggregate",
		Name:      "daily_steps",
		Help:      "Current value of the daily step counter.",
	})
	dailyGoalGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "aggregate",
		Name:      "daily_goal",
		Help:      "Current daily step goal.",
	})
	activitiesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fittrack",
		Subsystem: "aggregate",
		Name:      "activities",
		Help:      "Number of records in the activity history.",
	})
)

func init() {
	prometheus.MustRegister(
		stepsDetected, sessionsFinished,
		writeFailures, readFailures, activityPersistGauge,
		dailyStepsGauge, dailyGoalGauge, activitiesGauge,
	)
}

// RecordStepsDetected adds n accepted steps.
func RecordStepsDetected(n int) {
	if n <= 0 {
		return
	}
	stepsDetected.Add(float64(n))
}

// RecordSessionFinished counts a finished session.
func RecordSessionFinished(activityType string) {
	sessionsFinished.WithLabelValues(activityType).Inc()
}

// RecordWriteFailure counts a failed write-through for key.
func RecordWriteFailure(key string) {
	writeFailures.WithLabelValues(key).Inc()
}

// RecordReadFailure counts a key that failed to hydrate.
func RecordReadFailure(key string) {
	readFailures.WithLabelValues(key).Inc()
}

// RecordActivityPersisted updates the history write watermark.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// SetAggregate mirrors the aggregate counters into gauges.
func SetAggregate(dailySteps, dailyGoal, activities int) {
	dailyStepsGauge.Set(float64(dailySteps))
	dailyGoalGauge.Set(float64(dailyGoal))
	activitiesGauge.Set(float64(activities))
}
