package notify

import (
	"context"
	"log"

	"example.com/fittrack/internal/events"
)

// LogDeliverer writes reminders to a logger.
type LogDeliverer struct {
	Logger *log.Logger
}

// Deliver logs r.
func (d LogDeliverer) Deliver(_ context.Context, r Reminder) error {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("%s: %s", r.Title, r.Body)
	return nil
}

// EventEmitter is the subset of the outbox used for reminders.
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, payload any)
}

// EventDeliverer publishes reminders as reminder.due events.
type EventDeliverer struct {
	Events EventEmitter
}

// Deliver emits r.
func (d EventDeliverer) Deliver(ctx context.Context, r Reminder) error {
	d.Events.Emit(ctx, events.TypeReminderDue, events.ReminderDue{
		DailyGoal: r.Goal,
		Title:     r.Title,
		Body:      r.Body,
		FiredAt:   r.FiredAt.UTC(),
		Version:   events.Version,
	})
	return nil
}

// Multi delivers to every deliverer and returns the first error.
type Multi []Deliverer

// Deliver fans r out.
func (m Multi) Deliver(ctx context.Context, r Reminder) error {
	var first error
	for _, d := range m {
		if err := d.Deliver(ctx, r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NoopNotifier ignores reminder requests. Short-lived CLI commands use it.
type NoopNotifier struct{}

// ScheduleDailyGoalReminder does nothing.
func (NoopNotifier) ScheduleDailyGoalReminder(context.Context, int, int, int) error {
	return nil
}
