package dataprocessing

import "robokin/pkg/contracts/domain"

// Observation is one non-missing cell of a wide table in long form
type Observation struct {
	Run    domain.RunID
	TimeMs int64
	Field  domain.Field
	Robot  string
	Value  float64
}

// Melt un-pivots a wide table into its present cells, in row order then
// schema column order
func Melt(table *WideTable) []Observation {
	if table.Len() == 0 {
		return nil
	}

	cols := table.Schema.WideColumns()
	var out []Observation
	for _, row := range table.Rows {
		for i, col := range cols {
			if i >= len(row.Present) || !row.Present[i] {
				continue
			}
			out = append(out, Observation{
				Run:    row.Run,
				TimeMs: row.TimeMs,
				Field:  col.Field,
				Robot:  col.Robot,
				Value:  row.Values[i],
			})
		}
	}
	return out
}
