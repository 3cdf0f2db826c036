package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/fittrack/internal/apperrors"
)

// isoMillis matches the ISO-8601 form used for exported dates.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// FormatDuration renders whole seconds as zero-padded "mm:ss". Minutes are not
// folded into hours.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// ParseDuration parses "mm:ss" into seconds.
func ParseDuration(value string) (int, error) {
	minutes, seconds, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, fmt.Errorf("%w: duration %q must be mm:ss", apperrors.ErrInvalidFormInput, value)
	}
	m, err := strconv.Atoi(minutes)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("%w: duration %q has invalid minutes", apperrors.ErrInvalidFormInput, value)
	}
	s, err := strconv.Atoi(seconds)
	if err != nil || s < 0 || s > 59 || len(seconds) != 2 {
		return 0, fmt.Errorf("%w: duration %q has invalid seconds", apperrors.ErrInvalidFormInput, value)
	}
	return m*60 + s, nil
}

// FormatDate renders t in UTC with millisecond precision.
func FormatDate(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
