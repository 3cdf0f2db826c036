// Package events defines the payloads published when the fitness aggregate
// changes.
package events

import "time"

// Event types, used as the event_type header and the partition key.
const (
	TypeActivityRecorded  = "activity.recorded"
	TypeDailyStepsUpdated = "daily_steps.updated"
	TypeDailyGoalUpdated  = "daily_goal.updated"
	TypeProfileUpdated    = "profile.updated"
	TypeReminderDue       = "reminder.due"
)

// Version is stamped on every payload.
const Version = "v1"

// ActivityRecorded is emitted when an activity is appended to the history.
type ActivityRecorded struct {
	ActivityID   int64     `json:"activity_id"`
	SessionID    string    `json:"session_id,omitempty"`
	ActivityType string    `json:"activity_type"`
	Date         time.Time `json:"date"`
	Duration     string    `json:"duration"`
	Calories     int       `json:"calories"`
	Steps        int       `json:"steps"`
	Source       string    `json:"source"`
	Persisted    bool      `json:"persisted"`
	Version      string    `json:"version"`
}

// DailyStepsUpdated carries the new value of the daily step counter.
type DailyStepsUpdated struct {
	DailySteps int       `json:"daily_steps"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version"`
}

// DailyGoalUpdated carries the new daily step goal.
type DailyGoalUpdated struct {
	DailyGoal  int       `json:"daily_goal"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version"`
}

// ProfileUpdated is emitted on full profile replacement and on image merges.
type ProfileUpdated struct {
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	ImageOnly  bool      `json:"image_only"`
	OccurredAt time.Time `json:"occurred_at"`
	Version    string    `json:"version"`
}

// ReminderDue is emitted when the daily goal reminder fires.
type ReminderDue struct {
	DailyGoal int       `json:"daily_goal"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	FiredAt   time.Time `json:"fired_at"`
	Version   string    `json:"version"`
}
