package dataprocessing

import "robokin/pkg/contracts/domain"

// Summarize reduces a derived run to its start, end, duration and the
// cumulative distance of every robot
func Summarize(schema *FeatureSchema, run FeatureRun) domain.RunStats {
	stats := domain.RunStats{
		Run:           run.Run,
		Robots:        schema.Robots(),
		TotalDistance: make([]float64, len(schema.robots)),
	}
	if len(run.Rows) == 0 {
		return stats
	}

	stats.StartMs = run.Rows[0].TimeMs
	stats.EndMs = run.Rows[0].TimeMs
	for _, row := range run.Rows {
		stats.StartMs = min(stats.StartMs, row.TimeMs)
		stats.EndMs = max(stats.EndMs, row.TimeMs)
		for ri := range schema.robots {
			stats.TotalDistance[ri] += row.Values[schema.DistanceIndex(ri)]
		}
	}
	stats.DurationMs = stats.EndMs - stats.StartMs

	return stats
}
