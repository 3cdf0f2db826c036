// Package fitimport converts FIT activity files into manual activity entries.
package fitimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/tormoder/fit"

	"example.com/fittrack/internal/domain"
)

// Decode reads a FIT activity file and returns one entry per session.
func Decode(r io.Reader) ([]domain.ManualEntry, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}
	if len(activity.Sessions) == 0 {
		return nil, errors.New("activity file has no session message")
	}
	entries := make([]domain.ManualEntry, 0, len(activity.Sessions))
	for _, session := range activity.Sessions {
		entries = append(entries, entryFromSession(session))
	}
	return entries, nil
}

// DecodeFile opens path and decodes it.
func DecodeFile(path string) ([]domain.ManualEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func entryFromSession(session *fit.SessionMsg) domain.ManualEntry {
	seconds := session.GetTotalTimerTimeScaled()
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	calories := session.TotalCalories
	if calories == math.MaxUint16 {
		calories = 0
	}
	return domain.ManualEntry{
		Type:     activityType(session.Sport),
		Duration: domain.FormatDuration(int(math.Round(seconds))),
		Calories: fmt.Sprint(calories),
		Date:     validTimeOrZero(session.StartTime),
	}
}

func activityType(sport fit.Sport) string {
	switch sport {
	case fit.SportRunning:
		return domain.ActivityRunning
	case fit.SportCycling:
		return domain.ActivityCycling
	case fit.SportWalking:
		return domain.ActivityWalking
	}
	name := strings.TrimPrefix(fmt.Sprint(sport), "Sport")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "generic"
	}
	return name
}

func validTimeOrZero(t time.Time) time.Time {
	if t.IsZero() || fit.IsBaseTime(t) {
		return time.Time{}
	}
	return t
}

// Importer accepts manual entries. *domain.Service implements it.
type Importer interface {
	AddManualActivity(ctx context.Context, entry domain.ManualEntry) (domain.ActivityRecord, domain.WriteResult, error)
}

// ImportFile decodes path and adds every session. Records that were applied
// are returned even when some writes failed.
func ImportFile(ctx context.Context, importer Importer, path string) ([]domain.ActivityRecord, error) {
	entries, err := DecodeFile(path)
	if err != nil {
		return nil, err
	}
	var (
		added []domain.ActivityRecord
		errs  []error
	)
	for _, entry := range entries {
		rec, res, err := importer.AddManualActivity(ctx, entry)
		if res.Applied {
			added = append(added, rec)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return added, errors.Join(errs...)
}
