package domain

import (
	"fmt"
	"strings"
	"time"

	"example.com/fittrack/internal/apperrors"
)

// Known activity types. Other non-empty types are accepted and use the default
// calorie rate.
const (
	ActivityWalking = "walking"
	ActivityRunning = "running"
	ActivityCycling = "cycling"
)

// Activity sources carried on events.
const (
	SourceSession   = "session"
	SourceManual    = "manual"
	SourceFitImport = "fit_import"
)

// ActivityRecord is an immutable entry of the activity history. The JSON shape
// is the persisted shape of the "activities" key.
type ActivityRecord struct {
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	Type     string    `json:"type"`
	Duration string    `json:"duration"`
	Calories int       `json:"calories"`
	Steps    int       `json:"steps"`
}

// NewActivity is an ActivityRecord before the store assigns its id.
type NewActivity struct {
	Date      time.Time
	Type      string
	Duration  string
	Calories  int
	Steps     int
	Source    string
	SessionID string
}

// Validate checks the fields a record must satisfy before it is appended.
func (a NewActivity) Validate() error {
	if strings.TrimSpace(a.Type) == "" {
		return fmt.Errorf("%w: activity type is required", apperrors.ErrInvalidFormInput)
	}
	if a.Calories < 0 {
		return fmt.Errorf("%w: calories must be >= 0", apperrors.ErrInvalidFormInput)
	}
	if a.Steps < 0 {
		return fmt.Errorf("%w: steps must be >= 0", apperrors.ErrInvalidFormInput)
	}
	if _, err := ParseDuration(a.Duration); err != nil {
		return err
	}
	return nil
}

func (a NewActivity) record(id int64) ActivityRecord {
	return ActivityRecord{
		ID:       id,
		Date:     a.Date.UTC(),
		Type:     a.Type,
		Duration: a.Duration,
		Calories: a.Calories,
		Steps:    a.Steps,
	}
}

// UserProfile is replaced wholesale by profile updates; Image may be merged on
// its own.
type UserProfile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Height    string `json:"height"`
	Weight    string `json:"weight"`
	Image     string `json:"image,omitempty"`
}

// FullName joins first and last name.
func (p UserProfile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
