package dataprocessing

import (
	"sort"

	"robokin/pkg/contracts/domain"
)

// Interpolate returns a dense, time-sorted copy of one run's rows.
//
// Per column, gaps between two known samples (t0, v0) and (t1, v1) become
// v0 + (v1-v0)*(t-t0)/(t1-t0). Values before the first or after the last known
// sample carry that sample flat. A column with no known sample in the run is
// zero-filled. Columns and runs never read from each other.
func Interpolate(part RunPartition) RunPartition {
	rows := make([]domain.WideRow, len(part.Rows))
	for i, r := range part.Rows {
		rows[i] = r.Clone()
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TimeMs < rows[j].TimeMs })

	if len(rows) == 0 {
		return RunPartition{Run: part.Run}
	}

	width := len(rows[0].Values)
	for c := 0; c < width; c++ {
		prev := -1
		for i := range rows {
			if !rows[i].Present[c] {
				continue
			}
			if prev < 0 {
				for j := 0; j < i; j++ {
					rows[j].Values[c] = rows[i].Values[c]
				}
			} else {
				fillLinear(rows, c, prev, i)
			}
			prev = i
		}

		if prev < 0 {
			for i := range rows {
				rows[i].Values[c] = 0
			}
		} else {
			for j := prev + 1; j < len(rows); j++ {
				rows[j].Values[c] = rows[prev].Values[c]
			}
		}

		for i := range rows {
			rows[i].Present[c] = true
		}
	}

	return RunPartition{Run: part.Run, Rows: rows}
}

// fillLinear fills column c strictly between the known rows lo and hi
func fillLinear(rows []domain.WideRow, c, lo, hi int) {
	t0, v0 := rows[lo].TimeMs, rows[lo].Values[c]
	t1, v1 := rows[hi].TimeMs, rows[hi].Values[c]

	for j := lo + 1; j < hi; j++ {
		if t1 == t0 {
			rows[j].Values[c] = v0
			continue
		}
		frac := float64(rows[j].TimeMs-t0) / float64(t1-t0)
		rows[j].Values[c] = v0 + (v1-v0)*frac
	}
}
