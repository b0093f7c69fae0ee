package dataprocessing

import (
	"fmt"
	"sort"
	"strings"

	"robokin/pkg/contracts/domain"
)

// DuplicatePolicy decides how several samples for the same
// (run, time, field, robot) cell are combined
type DuplicatePolicy string

const (
	// DuplicatePolicyLast keeps the sample that comes last in input order
	DuplicatePolicyLast DuplicatePolicy = "last"
	// DuplicatePolicyMean averages all samples of the cell
	DuplicatePolicyMean DuplicatePolicy = "mean"
	// DuplicatePolicyError rejects the dataset
	DuplicatePolicyError DuplicatePolicy = "error"
)

// ParseDuplicatePolicy parses a policy name; the empty string selects last
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch p := DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DuplicatePolicyLast, nil
	case DuplicatePolicyLast, DuplicatePolicyMean, DuplicatePolicyError:
		return p, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// WideTable is the output of the pivot: rows sorted by (run, time) over the
// schema's wide columns
type WideTable struct {
	Schema *FeatureSchema
	Rows   []domain.WideRow
}

// Len returns the number of rows
func (t *WideTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// PivotReport describes what the pivot did with its input
type PivotReport struct {
	Samples    int `json:"samples"`
	Rows       int `json:"rows"`
	Cells      int `json:"cells"`
	Duplicates int `json:"duplicates"`
	Unmapped   int `json:"unmapped"`
}

type pivotKey struct {
	run  domain.RunID
	time int64
}

// Pivot builds one row per distinct (run, time) with one column per schema
// (field, robot) pair. Samples whose pair is not in the schema are skipped
// and counted as unmapped. Samples must have TimeMs set.
func Pivot(samples []domain.RawSample, schema *FeatureSchema, policy DuplicatePolicy) (*WideTable, PivotReport, error) {
	if schema == nil {
		return nil, PivotReport{}, fmt.Errorf("pivot: nil schema")
	}
	if policy == "" {
		policy = DuplicatePolicyLast
	}

	width := schema.WideWidth()
	report := PivotReport{Samples: len(samples)}
	rows := make(map[pivotKey]*domain.WideRow)
	counts := make(map[pivotKey][]int)

	for _, s := range samples {
		col, ok := schema.ColumnIndex(domain.Column{Field: s.Field, Robot: s.Robot})
		if !ok {
			report.Unmapped++
			continue
		}

		key := pivotKey{run: s.Run, time: s.TimeMs}
		row, ok := rows[key]
		if !ok {
			row = &domain.WideRow{
				Run:     s.Run,
				TimeMs:  s.TimeMs,
				Values:  make([]float64, width),
				Present: make([]bool, width),
			}
			rows[key] = row
			counts[key] = make([]int, width)
		}

		n := counts[key]
		if n[col] > 0 {
			report.Duplicates++
			switch policy {
			case DuplicatePolicyError:
				return nil, report, fmt.Errorf("pivot: %w: run %s time %d column %s",
					ErrDuplicateCell, s.Run, s.TimeMs, schema.wide[col].Name())
			case DuplicatePolicyMean:
				row.Values[col] += s.Value
			default:
				row.Values[col] = s.Value
			}
		} else {
			row.Values[col] = s.Value
			row.Present[col] = true
			report.Cells++
		}
		n[col]++
	}

	table := &WideTable{Schema: schema, Rows: make([]domain.WideRow, 0, len(rows))}
	for key, row := range rows {
		if policy == DuplicatePolicyMean {
			for i, n := range counts[key] {
				if n > 1 {
					row.Values[i] /= float64(n)
				}
			}
		}
		table.Rows = append(table.Rows, *row)
	}
	sort.Slice(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i], table.Rows[j]
		if a.Run != b.Run {
			return a.Run < b.Run
		}
		return a.TimeMs < b.TimeMs
	})
	report.Rows = len(table.Rows)

	return table, report, nil
}
