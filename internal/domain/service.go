// Package domain defines the fitness aggregate and the workflows built on it.
package domain

import (
	"context"
	"errors"
	"time"
)

// Service validates user input before it reaches the Store. Invalid input is
// rejected without touching the aggregate.
type Service struct {
	store *Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Store exposes the underlying aggregate.
func (s *Service) Store() *Store {
	return s.store
}

// SetDailyGoal validates the goal range before updating the aggregate.
func (s *Service) SetDailyGoal(ctx context.Context, goal int) (WriteResult, error) {
	if err := ValidateGoal(goal); err != nil {
		return WriteResult{}, err
	}
	return s.store.UpdateDailyGoal(ctx, goal)
}

// ProfileResult reports both writes done by SubmitProfileForm.
type ProfileResult struct {
	Profile UserProfile `json:"profile"`
	Goal    int         `json:"dailyGoal"`
	Result  WriteResult `json:"result"`
}

// SubmitProfileForm validates the whole form, then replaces the profile and
// the goal. Persisted is true only when both writes reached storage.
func (s *Service) SubmitProfileForm(ctx context.Context, form ProfileForm) (ProfileResult, error) {
	profile, goal, err := form.Validate()
	if err != nil {
		return ProfileResult{}, err
	}
	profileRes, profileErr := s.store.UpdateUserProfile(ctx, profile)
	goalRes, goalErr := s.store.UpdateDailyGoal(ctx, goal)
	return ProfileResult{
		Profile: profile,
		Goal:    goal,
		Result: WriteResult{
			Applied:   profileRes.Applied && goalRes.Applied,
			Persisted: profileRes.Persisted && goalRes.Persisted,
		},
	}, errors.Join(profileErr, goalErr)
}

// AddManualActivity records an activity entered by hand. It never changes the
// daily step counter.
func (s *Service) AddManualActivity(ctx context.Context, entry ManualEntry) (ActivityRecord, WriteResult, error) {
	activity, err := entry.Validate(s.now())
	if err != nil {
		return ActivityRecord{}, WriteResult{}, err
	}
	return s.store.AddActivity(ctx, activity)
}

// History returns the filtered activity list.
func (s *Service) History(f Filter) []ActivityRecord {
	return FilterActivities(s.store.Activities(), f)
}

// Summary totals the current period.
func (s *Service) Summary(period Period) Summary {
	return Summarize(s.store.Activities(), period, s.now())
}

// Dashboard returns today's stats.
func (s *Service) Dashboard() DashboardStats {
	return Dashboard(s.store.Snapshot(), s.now())
}

// Calendar returns the days that have activity.
func (s *Service) Calendar() []string {
	return MarkedDates(s.store.Activities())
}
