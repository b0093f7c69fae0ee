package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Required columns of the long-format telemetry input
const (
	ColumnRunUUID    = "run_uuid"
	ColumnRobotID    = "robot_id"
	ColumnSensorType = "sensor_type"
	ColumnField      = "field"
	ColumnTime       = "time"
	ColumnValue      = "value"
)

// RequiredColumns lists the input columns every telemetry table must carry
var RequiredColumns = []string{
	ColumnRunUUID,
	ColumnRobotID,
	ColumnSensorType,
	ColumnField,
	ColumnTime,
	ColumnValue,
}

// RunID identifies one data-collection session. Runs are ordered numerically.
type RunID int64

// String returns the decimal form of the run identifier
func (r RunID) String() string {
	return strconv.FormatInt(int64(r), 10)
}

// ParseRunID parses a numeric run identifier. Integral floats such as "7.0"
// are accepted; fractional, non-finite and out-of-range values are rejected.
func ParseRunID(s string) (RunID, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return RunID(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid run id %q: %w", s, err)
	}
	n, ok := IntegralFloat(f)
	if !ok {
		return 0, fmt.Errorf("run id %q is not an int64 integer", s)
	}
	return RunID(n), nil
}

// IntegralFloat reports whether f is a whole number inside the int64 range
// and returns it converted. The range check comes first because converting
// an out-of-range float to int64 is implementation-defined.
func IntegralFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || f < -(1<<63) || f >= 1<<63 || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

// SensorType represents the kind of sensor that produced a reading
type SensorType string

const (
	SensorTypeEncoder  SensorType = "encoder"
	SensorTypeLoadCell SensorType = "load_cell"
)

// Field is the measured quantity of a reading
type Field string

const (
	FieldX  Field = "x"
	FieldY  Field = "y"
	FieldZ  Field = "z"
	FieldFX Field = "fx"
	FieldFY Field = "fy"
	FieldFZ Field = "fz"
)

// RawSample is one validated sensor reading in long format
type RawSample struct {
	Run    RunID      `json:"run_uuid"`
	Robot  string     `json:"robot_id"`
	Sensor SensorType `json:"sensor_type"`
	Field  Field      `json:"field"`
	Time   string     `json:"time"`
	TimeMs int64      `json:"time_ms"`
	Value  float64    `json:"value"`
}

// Column identifies one wide-table column: a (field, robot) pair
type Column struct {
	Field Field  `json:"field"`
	Robot string `json:"robot"`
}

// Name returns the wide column name, e.g. "x_1" or "fy_2"
func (c Column) Name() string {
	return string(c.Field) + "_" + c.Robot
}

// RunStats summarises one run
type RunStats struct {
	Run           RunID     `json:"run_uuid"`
	StartMs       int64     `json:"run_starttime"`
	EndMs         int64     `json:"run_endtime"`
	DurationMs    int64     `json:"total_runtime_ms"`
	Robots        []string  `json:"robots"`
	TotalDistance []float64 `json:"total_distance"`
}

// DistanceFor returns the cumulative distance of the given robot, or false if
// the robot is not part of the summary
func (s RunStats) DistanceFor(robot string) (float64, bool) {
	for i, r := range s.Robots {
		if r == robot {
			return s.TotalDistance[i], true
		}
	}
	return 0, false
}
