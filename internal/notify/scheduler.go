// Package notify schedules the daily goal reminder.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ReminderTitle is the title of every goal reminder.
const ReminderTitle = "Daily Fitness Goal Reminder"

// Reminder is one delivered notification.
type Reminder struct {
	Goal    int
	Title   string
	Body    string
	FiredAt time.Time
}

// NewReminder builds the reminder text for goal.
func NewReminder(goal int, at time.Time) Reminder {
	return Reminder{
		Goal:    goal,
		Title:   ReminderTitle,
		Body:    fmt.Sprintf("Don't forget to reach your daily goal of %d steps!", goal),
		FiredAt: at,
	}
}

// Deliverer shows or forwards a reminder.
type Deliverer interface {
	Deliver(ctx context.Context, r Reminder) error
}

type stopper interface {
	Stop() bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the scheduler logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithClock overrides the clock used to compute the next occurrence.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

func withAfterFunc(fn func(time.Duration, func()) stopper) Option {
	return func(s *Scheduler) {
		s.afterFunc = fn
	}
}

// Scheduler keeps at most one pending daily reminder.
type Scheduler struct {
	deliverer Deliverer
	logger    *log.Logger
	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper

	mu      sync.Mutex
	timer   stopper
	gen     uint64
	goal    int
	hour    int
	minute  int
	next    time.Time
	pending bool
	closed  bool
}

// NewScheduler constructs a Scheduler that hands fired reminders to d.
func NewScheduler(d Deliverer, opts ...Option) *Scheduler {
	s := &Scheduler{
		deliverer: d,
		logger:    log.New(log.Writer(), "[notify] ", log.LstdFlags|log.Lshortfile),
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScheduleDailyGoalReminder cancels any pending reminder and arms a new one
// for the next hour:minute in local time, repeating daily.
func (s *Scheduler) ScheduleDailyGoalReminder(_ context.Context, goal, hour, minute int) error {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return fmt.Errorf("invalid reminder time %02d:%02d", hour, minute)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("notify: scheduler closed")
	}
	s.cancelLocked()
	s.goal, s.hour, s.minute = goal, hour, minute
	s.armLocked()
	s.logger.Printf("goal reminder for %d steps scheduled at %s", goal, s.next.Format(time.RFC3339))
	return nil
}

// Next reports when the pending reminder fires.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, s.pending
}

// Close cancels the pending reminder. Later schedules fail.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.closed = true
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.pending = false
	s.next = time.Time{}
}

func (s *Scheduler) armLocked() {
	now := s.now()
	s.next = NextOccurrence(now, s.hour, s.minute)
	s.pending = true
	gen := s.gen
	s.timer = s.afterFunc(s.next.Sub(now), func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	reminder := NewReminder(s.goal, s.now())
	s.armLocked()
	s.mu.Unlock()

	if s.deliverer == nil {
		return
	}
	if err := s.deliverer.Deliver(context.Background(), reminder); err != nil {
		s.logger.Printf("deliver goal reminder failed: %v", err)
	}
}

// NextOccurrence returns the first hour:minute strictly after now, in now's
// location.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	candidate := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return candidate
}
