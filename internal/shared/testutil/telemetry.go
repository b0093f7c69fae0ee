package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TelemetryHeader is the long-format input header
const TelemetryHeader = "run_uuid,robot_id,sensor_type,field,time,value"

// TelemetryRows is a small two-run input for the default rule table. The last
// row names an unknown robot and is dropped by robot_id.accepted_values.
var TelemetryRows = []string{
	"1,1,encoder,x,2023-01-01T00:00:00.000Z,0",
	"1,1,encoder,x,2023-01-01T00:00:00.040Z,4",
	"1,2,load_cell,fx,2023-01-01T00:00:00.000Z,1.5",
	"2,1,encoder,y,2023-01-01T00:00:01.000Z,2",
	"2,2,encoder,z,2023-01-01T00:00:01.020Z,3",
	"1,9,encoder,x,2023-01-01T00:00:00.000Z,1",
}

// TelemetryCSV renders header and rows as a CSV document
func TelemetryCSV(header string, rows ...string) string {
	return header + "\n" + strings.Join(rows, "\n") + "\n"
}

// WriteTelemetry writes a CSV input into a fresh temp dir and returns its
// path. With no rows it writes TelemetryRows.
func WriteTelemetry(t testing.TB, rows ...string) string {
	t.Helper()
	if len(rows) == 0 {
		rows = TelemetryRows
	}
	return WriteFile(t, t.TempDir(), "telemetry.csv", TelemetryCSV(TelemetryHeader, rows...))
}

// WriteFile writes body to dir/name and returns the path
func WriteFile(t testing.TB, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
