package domain

// WideRow is one (run, time) row of the pivoted table. Values and Present are
// indexed by the feature schema's wide columns; Present[i] is false where no
// reading exists for the column at this timestamp.
type WideRow struct {
	Run     RunID     `json:"run_uuid"`
	TimeMs  int64     `json:"time"`
	Values  []float64 `json:"values"`
	Present []bool    `json:"present"`
}

// Clone returns a deep copy of the row
func (r WideRow) Clone() WideRow {
	return WideRow{
		Run:     r.Run,
		TimeMs:  r.TimeMs,
		Values:  append([]float64(nil), r.Values...),
		Present: append([]bool(nil), r.Present...),
	}
}

// Dense reports whether every column of the row holds a value
func (r WideRow) Dense() bool {
	for _, p := range r.Present {
		if !p {
			return false
		}
	}
	return true
}

// FeatureRow is one dense row of the interpolated table: the wide columns
// followed by the derived kinematic columns, in feature schema order
type FeatureRow struct {
	Run    RunID     `json:"run_uuid"`
	TimeMs int64     `json:"time"`
	Values []float64 `json:"values"`
}
