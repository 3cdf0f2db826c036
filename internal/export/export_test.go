package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"example.com/fittrack/internal/domain"
)

func records() []domain.ActivityRecord {
	return []domain.ActivityRecord{
		{ID: 1741165200000, Date: time.Date(2025, time.March, 5, 9, 0, 0, 0, time.UTC), Type: "running", Duration: "02:00", Steps: 300, Calories: 22},
		{ID: 1741165200001, Date: time.Date(2025, time.March, 5, 18, 30, 0, 0, time.UTC), Type: "yoga, hot", Duration: "45:00", Steps: 0, Calories: 120},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records()))

	want := "Date,Type,Duration,Steps,Calories\n" +
		"2025-03-05T09:00:00.000Z,running,02:00,300,22\n" +
		"2025-03-05T18:30:00.000Z,\"yoga, hot\",45:00,0,120\n"
	require.Equal(t, want, buf.String())
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	require.Equal(t, "Date,Type,Duration,Steps,Calories\n", buf.String())
}

func TestFileNames(t *testing.T) {
	now := time.Date(2025, time.March, 5, 23, 59, 0, 0, time.UTC)
	require.Equal(t, "fitness_activities_2025-03-05.csv", FileName(now))
	require.Equal(t, "fitness_activities_2025-03-05.parquet", ParquetFileName(now))
}

func TestMarshalParquet(t *testing.T) {
	data, err := MarshalParquet(records())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("PAR1")))
	require.True(t, bytes.HasSuffix(data, []byte("PAR1")))

	pr, err := reader.NewParquetReader(parquetbuffer.NewBufferFileFromBytes(data), new(activityRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(2), pr.GetNumRows())
	rows := make([]activityRow, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "running", rows[0].Type)
	require.Equal(t, int64(300), rows[0].Steps)
	require.Equal(t, "yoga, hot", rows[1].Type)
	require.Equal(t, "2025-03-05T18:30:00.000Z", rows[1].Date)
}
