// Package export writes the activity history to files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"example.com/fittrack/internal/domain"
)

// Header is the CSV header row, in column order.
var Header = []string{"Date", "Type", "Duration", "Steps", "Calories"}

// FileName is the export file name for the day of now.
func FileName(now time.Time) string {
	return fmt.Sprintf("fitness_activities_%s.csv", now.Format("2006-01-02"))
}

// WriteCSV writes the header and one row per record.
func WriteCSV(w io.Writer, records []domain.ActivityRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			domain.FormatDate(r.Date),
			r.Type,
			r.Duration,
			strconv.Itoa(r.Steps),
			strconv.Itoa(r.Calories),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
