package session

import (
	"strings"

	"example.com/fittrack/internal/domain"
)

// DefaultBurnRate applies to activity types without a known rate.
const DefaultBurnRate = 4

var burnRates = map[string]int{
	domain.ActivityWalking: 4,
	domain.ActivityRunning: 11,
	domain.ActivityCycling: 7,
}

// BurnRate returns calories per minute for an activity type.
func BurnRate(activityType string) int {
	if rate, ok := burnRates[strings.ToLower(strings.TrimSpace(activityType))]; ok {
		return rate
	}
	return DefaultBurnRate
}

// CaloriesBurned is floor(elapsed minutes * rate).
func CaloriesBurned(activityType string, elapsedSeconds int) int {
	if elapsedSeconds <= 0 {
		return 0
	}
	return elapsedSeconds * BurnRate(activityType) / 60
}
