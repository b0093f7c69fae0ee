package domain

import (
	"fmt"
	"sort"
)

// Table is a raw tabular dataset of string cells, as read from the input boundary
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Index returns the position of the named column, or -1 if absent
func (t *Table) Index(column string) int {
	for i, h := range t.Header {
		if h == column {
			return i
		}
	}
	return -1
}

// RequireColumns fails if any of the given columns is missing from the header
func (t *Table) RequireColumns(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if t.Index(c) < 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingColumn, missing)
	}
	return nil
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// DropReport counts dropped rows per validation rule, e.g. "field.accepted_values"
type DropReport map[string]int

// Add records one dropped row for the rule
func (r DropReport) Add(rule string) {
	r[rule]++
}

// Merge folds the counts of other into r
func (r DropReport) Merge(other DropReport) {
	for rule, n := range other {
		r[rule] += n
	}
}

// Total returns the number of dropped rows across all rules
func (r DropReport) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// Rules returns the rule names in sorted order
func (r DropReport) Rules() []string {
	rules := make([]string, 0, len(r))
	for rule := range r {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	return rules
}
