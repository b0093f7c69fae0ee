package dataprocessing

import (
	"robokin/pkg/contracts/domain"
)

// Output table names shared by every sink
const (
	TableTimeseriesRaw = "timeseries_raw"
	TableInterpolated  = "interpolated"
	TableRunStats      = "run_stats"
)

// Fixed output column names
const (
	ColumnTimeMs         = "time_ms"
	ColumnRunStartTime   = "run_starttime"
	ColumnRunEndTime     = "run_endtime"
	ColumnTotalRuntimeMs = "total_runtime_ms"
	totalDistancePrefix  = "total_distance_"
)

// RawColumns is the column layout of timeseries_raw. Both the lexical time
// and its epoch-ms value are kept.
var RawColumns = []string{
	domain.ColumnRunUUID,
	domain.ColumnRobotID,
	domain.ColumnSensorType,
	domain.ColumnField,
	domain.ColumnTime,
	ColumnTimeMs,
	domain.ColumnValue,
}

// InterpolatedColumns returns run_uuid, time and then every feature column
func (s *FeatureSchema) InterpolatedColumns() []string {
	cols := make([]string, 0, len(s.names)+2)
	cols = append(cols, domain.ColumnRunUUID, domain.ColumnTime)
	return append(cols, s.names...)
}

// RunStatsColumns returns the run_stats layout with one distance column per
// configured robot
func (s *FeatureSchema) RunStatsColumns() []string {
	cols := []string{domain.ColumnRunUUID, ColumnRunStartTime, ColumnRunEndTime, ColumnTotalRuntimeMs}
	for _, robot := range s.robots {
		cols = append(cols, totalDistancePrefix+robot)
	}
	return cols
}

// Distances returns the total distance of every configured robot in schema
// order. Robots missing from stats report zero.
func (s *FeatureSchema) Distances(stats domain.RunStats) []float64 {
	out := make([]float64, len(s.robots))
	for i, robot := range s.robots {
		if d, ok := stats.DistanceFor(robot); ok {
			out[i] = d
		}
	}
	return out
}
