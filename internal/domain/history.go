package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"example.com/fittrack/internal/apperrors"
)

// StrideMeters is the average stride used to estimate distance from steps.
const StrideMeters = 0.762

const dayLayout = "2006-01-02"

// Filter narrows the history list. Empty fields match everything.
type Filter struct {
	// Date is a UTC calendar day, YYYY-MM-DD.
	Date string
	// Query is matched case-insensitively as a substring of the type.
	Query string
}

// FilterActivities returns the records matching f, keeping order.
func FilterActivities(list []ActivityRecord, f Filter) []ActivityRecord {
	date := strings.TrimSpace(f.Date)
	query := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]ActivityRecord, 0, len(list))
	for _, a := range list {
		if date != "" && a.Date.UTC().Format(dayLayout) != date {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(a.Type), query) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Period selects the summary window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod accepts daily, weekly or monthly. Empty means daily.
func ParsePeriod(value string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(value))); p {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown period %q", apperrors.ErrInvalidFormInput, value)
	}
}

// Bounds returns the half-open window [start, end) containing now, in now's
// location. Weeks start on Sunday.
func (p Period) Bounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case PeriodWeekly:
		start := time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 7)
	case PeriodMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	default:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1)
	}
}

// Summary aggregates the records of one period.
type Summary struct {
	Period          Period `json:"period"`
	TotalSteps      int    `json:"totalSteps"`
	TotalCalories   int    `json:"totalCalories"`
	TotalActivities int    `json:"totalActivities"`
	AverageSteps    int    `json:"averageSteps"`
}

// Summarize totals the records whose date falls in the period around now.
func Summarize(list []ActivityRecord, period Period, now time.Time) Summary {
	start, end := period.Bounds(now)
	sum := Summary{Period: period}
	for _, a := range list {
		if a.Date.Before(start) || !a.Date.Before(end) {
			continue
		}
		sum.TotalSteps += a.Steps
		sum.TotalCalories += a.Calories
		sum.TotalActivities++
	}
	sum.AverageSteps = int(math.Round(float64(sum.TotalSteps) / float64(max(sum.TotalActivities, 1))))
	return sum
}

// DashboardStats is the home screen view of today.
type DashboardStats struct {
	DailySteps      int     `json:"dailySteps"`
	DailyGoal       int     `json:"dailyGoal"`
	GoalProgress    float64 `json:"goalProgress"`
	DailyCalories   int     `json:"dailyCalories"`
	ActiveTime      string  `json:"activeTime"`
	DistanceKm      float64 `json:"distanceKm"`
	TodayActivities int     `json:"todayActivities"`
}

// Dashboard derives today's stats. Distance comes from the daily step
// counter, calories and active time from today's records.
func Dashboard(snap Snapshot, now time.Time) DashboardStats {
	start, end := PeriodDaily.Bounds(now)
	stats := DashboardStats{
		DailySteps: snap.DailySteps,
		DailyGoal:  snap.DailyGoal,
		DistanceKm: math.Round(float64(snap.DailySteps)*StrideMeters/1000*10) / 10,
	}
	if snap.DailyGoal > 0 {
		stats.GoalProgress = math.Round(float64(snap.DailySteps)/float64(snap.DailyGoal)*1000) / 10
	}

	activeSeconds := 0
	for _, a := range snap.Activities {
		if a.Date.Before(start) || !a.Date.Before(end) {
			continue
		}
		stats.DailyCalories += a.Calories
		stats.TodayActivities++
		// records were validated on the way in; a bad value only loses its time
		if secs, err := ParseDuration(a.Duration); err == nil {
			activeSeconds += secs
		}
	}
	stats.ActiveTime = FormatDuration(activeSeconds)
	return stats
}

// MarkedDates returns the sorted UTC days that have at least one record.
func MarkedDates(list []ActivityRecord) []string {
	seen := make(map[string]struct{}, len(list))
	for _, a := range list {
		seen[a.Date.UTC().Format(dayLayout)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for day := range seen {
		out = append(out, day)
	}
	sort.Strings(out)
	return out
}
