package export

import (
	"fmt"
	"time"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"example.com/fittrack/internal/domain"
)

type activityRow struct {
	ID       int64  `parquet:"name=id, type=INT64"`
	Date     string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type     string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Duration string `parquet:"name=duration, type=BYTE_ARRAY, convertedtype=UTF8"`
	Steps    int64  `parquet:"name=steps, type=INT64"`
	Calories int64  `parquet:"name=calories, type=INT64"`
}

// ParquetFileName is the parquet export file name for the day of now.
func ParquetFileName(now time.Time) string {
	return fmt.Sprintf("fitness_activities_%s.parquet", now.Format("2006-01-02"))
}

// MarshalParquet encodes records as a snappy-compressed parquet file.
func MarshalParquet(records []domain.ActivityRecord) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	pw, err := writer.NewParquetWriter(fw, new(activityRow), 4)
	if err != nil {
		return nil, err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range records {
		row := activityRow{
			ID:       r.ID,
			Date:     domain.FormatDate(r.Date),
			Type:     r.Type,
			Duration: r.Duration,
			Steps:    int64(r.Steps),
			Calories: int64(r.Calories),
		}
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			return nil, err
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, err
	}
	if err := fw.Close(); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}
