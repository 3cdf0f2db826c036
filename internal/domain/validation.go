package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"example.com/fittrack/internal/apperrors"
)

// Daily goal bounds accepted from user input.
const (
	MinDailyGoal     = 1000
	MaxDailyGoal     = 100000
	DefaultDailyGoal = 10000
)

// InvalidGoalMessage is shown when a goal falls outside the accepted range.
const InvalidGoalMessage = "Please enter a valid step goal between 1,000 and 100,000"

// ValidateGoal rejects goals outside [MinDailyGoal, MaxDailyGoal].
func ValidateGoal(goal int) error {
	if goal < MinDailyGoal || goal > MaxDailyGoal {
		return fmt.Errorf("%w: %d is outside [%d, %d]", apperrors.ErrInvalidGoalValue, goal, MinDailyGoal, MaxDailyGoal)
	}
	return nil
}

// ValidationError reports per-field form problems.
type ValidationError struct {
	Fields map[string]string
	goal   bool
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid form input: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrInvalidFormInput, and ErrInvalidGoalValue
// when the goal itself was out of range.
func (e *ValidationError) Unwrap() []error {
	if e.goal {
		return []error{apperrors.ErrInvalidFormInput, apperrors.ErrInvalidGoalValue}
	}
	return []error{apperrors.ErrInvalidFormInput}
}

// ProfileForm is the raw onboarding form.
type ProfileForm struct {
	FirstName string
	LastName  string
	Height    string
	Weight    string
	DailyGoal string
	Image     string
}

// Validate trims the form and converts it into a profile and a goal.
func (f ProfileForm) Validate() (UserProfile, int, error) {
	verr := &ValidationError{Fields: map[string]string{}}

	firstName := strings.TrimSpace(f.FirstName)
	lastName := strings.TrimSpace(f.LastName)
	height := strings.TrimSpace(f.Height)
	weight := strings.TrimSpace(f.Weight)

	if firstName == "" {
		verr.Fields["firstName"] = "First name is required"
	}
	if lastName == "" {
		verr.Fields["lastName"] = "Last name is required"
	}
	if !isNumeric(height) {
		verr.Fields["height"] = "Valid height is required"
	}
	if !isNumeric(weight) {
		verr.Fields["weight"] = "Valid weight is required"
	}

	goal, err := strconv.Atoi(strings.TrimSpace(f.DailyGoal))
	switch {
	case err != nil:
		verr.Fields["dailyGoal"] = "Valid daily goal is required"
	case ValidateGoal(goal) != nil:
		verr.Fields["dailyGoal"] = InvalidGoalMessage
		verr.goal = true
	}

	if len(verr.Fields) > 0 {
		return UserProfile{}, 0, verr
	}
	return UserProfile{
		FirstName: firstName,
		LastName:  lastName,
		Height:    height,
		Weight:    weight,
		Image:     strings.TrimSpace(f.Image),
	}, goal, nil
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// ManualEntry is an activity typed in by hand, without a live sensor session.
type ManualEntry struct {
	Type     string
	Duration string
	Calories string
	Date     time.Time
}

// Validate converts the entry into a NewActivity with zero steps. The
// duration is checked as mm:ss but stored as typed.
func (m ManualEntry) Validate(now time.Time) (NewActivity, error) {
	verr := &ValidationError{Fields: map[string]string{}}

	activityType := strings.TrimSpace(m.Type)
	if activityType == "" {
		verr.Fields["type"] = "Activity type is required"
	}

	calories, err := strconv.Atoi(strings.TrimSpace(m.Calories))
	if err != nil || calories < 0 {
		verr.Fields["calories"] = "Calories must be a whole number"
	}

	duration := strings.TrimSpace(m.Duration)
	if _, err := ParseDuration(duration); err != nil {
		verr.Fields["duration"] = "Duration must be mm:ss"
	}

	if len(verr.Fields) > 0 {
		return NewActivity{}, verr
	}

	date := m.Date
	if date.IsZero() {
		date = now
	}
	return NewActivity{
		Date:     date,
		Type:     activityType,
		Duration: duration,
		Calories: calories,
		Steps:    0,
		Source:   SourceManual,
	}, nil
}
