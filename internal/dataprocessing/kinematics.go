package dataprocessing

import (
	"fmt"
	"math"
	"sort"

	"robokin/pkg/contracts/domain"
)

// Derive computes the kinematic features of one dense run.
//
// For each robot and axis, with i the time-ordered row index:
//
//	d[i] = p[i] - p[i-1]            d[0] = 0
//	v[i] = d[i] / dt[i]             v[0] = 0
//	a[i] = (v[i] - v[i-1]) / dt[i]  a[0] = a[1] = 0
//
// with dt in seconds. A zero dt yields 0 instead of NaN or Inf, and the
// sanitized velocity is what the next acceleration sees. Magnitudes are the
// Euclidean norms over axes (d, v, a) and over force fields (f).
func Derive(schema *FeatureSchema, part RunPartition) (FeatureRun, error) {
	rows := make([]domain.WideRow, len(part.Rows))
	copy(rows, part.Rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TimeMs < rows[j].TimeMs })

	wide := schema.WideWidth()
	out := FeatureRun{Run: part.Run, Rows: make([]domain.FeatureRow, len(rows))}

	for i, row := range rows {
		if len(row.Values) != wide {
			return FeatureRun{}, fmt.Errorf("derive run %s: row has %d columns, schema has %d",
				part.Run, len(row.Values), wide)
		}
		if !row.Dense() {
			return FeatureRun{}, fmt.Errorf("derive run %s at %d: %w", part.Run, row.TimeMs, ErrSparseInput)
		}

		values := make([]float64, schema.Width())
		copy(values, row.Values)

		var dt float64
		if i > 0 {
			dt = float64(row.TimeMs-rows[i-1].TimeMs) / 1000
		}

		for ri := range schema.robots {
			var dSq, vSq, aSq float64
			for ai := range schema.axes {
				base := schema.axisBase(ri, ai)
				var d, v, a float64
				if i > 0 {
					pos := schema.positionIndex(ri, ai)
					d = finiteOrZero(row.Values[pos] - rows[i-1].Values[pos])
					v = finiteOrZero(d / dt)
					if i > 1 {
						prevV := out.Rows[i-1].Values[base+1]
						a = finiteOrZero((v - prevV) / dt)
					}
				}
				values[base], values[base+1], values[base+2] = d, v, a
				dSq += d * d
				vSq += v * v
				aSq += a * a
			}

			var fSq float64
			for fi := range schema.forces {
				f := row.Values[schema.forceIndex(ri, fi)]
				fSq += f * f
			}

			m := schema.magnitudeBase(ri)
			values[m] = finiteOrZero(math.Sqrt(dSq))
			values[m+1] = finiteOrZero(math.Sqrt(vSq))
			values[m+2] = finiteOrZero(math.Sqrt(aSq))
			values[m+3] = finiteOrZero(math.Sqrt(fSq))
		}

		out.Rows[i] = domain.FeatureRow{Run: row.Run, TimeMs: row.TimeMs, Values: values}
	}

	return out, nil
}

func finiteOrZero(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
