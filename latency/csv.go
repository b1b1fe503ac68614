package latency

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"
)

// DefaultResultsDir is the directory reports are saved under.
const DefaultResultsDir = "LatencyTestResults"

// csvHeader is the report header row.
var csvHeader = []string{
	"Event Index",
	"Partition Id",
	"Sequence Id",
	"Event Id",
	"Produced At",
	"Enqueued At",
	"Received At",
	"Produced-Enqueued Latency",
	"Enqueued-Received Latency",
	"Produced-Received Latency",
}

// fieldSeparator joins report fields. Every field is a number, an id or an
// RFC 3339 timestamp, none of which contain the separator.
const fieldSeparator = ", "

// WriteCSV writes the report as comma-separated text, one row per received event.
//
// Timestamps are RFC 3339 with nanoseconds in UTC; latencies are seconds with
// microsecond precision.
func WriteCSV(w io.Writer, report *Report) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(csvHeader, fieldSeparator) + "\n"); err != nil {
		return err
	}

	fields := make([]string, len(csvHeader))
	for _, row := range report.Rows {
		fields[0] = strconv.Itoa(row.Index)
		fields[1] = row.PartitionID
		fields[2] = strconv.FormatInt(row.SequenceNumber, 10)
		fields[3] = row.CorrelationID
		fields[4] = formatTime(row.ProducedAt)
		fields[5] = formatTime(row.EnqueuedAt)
		fields[6] = formatTime(row.ReceivedAt)
		fields[7] = FormatSeconds(row.ProducedEnqueued)
		fields[8] = FormatSeconds(row.EnqueuedReceived)
		fields[9] = FormatSeconds(row.ProducedReceived)
		if _, err := bw.WriteString(strings.Join(fields, fieldSeparator) + "\n"); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// SaveReport writes the report to dir/LatencyTest_<unix seconds>.csv.
//
// The directory is created on demand and the file is replaced atomically.
//
// Parameters:
//   - dir: Results directory (DefaultResultsDir if empty)
//   - now: Instant used for the file name suffix
//   - report: Report to write
//
// Returns:
//   - string: Path of the written file
//   - error: Directory creation or write failure
func SaveReport(dir string, now time.Time, report *Report) (string, error) {
	if dir == "" {
		dir = DefaultResultsDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory %s: %w", dir, err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, report); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	path := filepath.Join(dir, ReportFileName(now))
	if err := renameio.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	return path, nil
}

// ReportFileName returns the report file name for the given instant.
func ReportFileName(now time.Time) string {
	return fmt.Sprintf("LatencyTest_%d.csv", now.Unix())
}

// FormatSeconds renders a duration as seconds with six decimals.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}
