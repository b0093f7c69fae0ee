package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"robokin/pkg/contracts/domain"
)

// DType is the declared type of a validated column
type DType string

const (
	DTypeString DType = "string"
	DTypeInt    DType = "int"
	DTypeFloat  DType = "float"
)

// Rule describes how one column is coerced and filtered
type Rule struct {
	DType          DType    `yaml:"dtype" json:"dtype" validate:"required,oneof=string int float"`
	AcceptedValues []string `yaml:"accepted_values,omitempty" json:"accepted_values,omitempty"`
}

// Schema is an immutable column -> rule table. Build it with NewSchema.
type Schema struct {
	columns  []string
	rules    map[string]Rule
	accepted map[string]map[string]struct{}
}

// NewSchema validates and copies the rule table. Accepted values are
// canonicalised with the column's dtype so "01" and "1" match for int columns.
func NewSchema(rules map[string]Rule) (Schema, error) {
	if len(rules) == 0 {
		return Schema{}, fmt.Errorf("validation schema has no rules")
	}

	v := validator.New()
	s := Schema{
		columns:  make([]string, 0, len(rules)),
		rules:    make(map[string]Rule, len(rules)),
		accepted: make(map[string]map[string]struct{}),
	}

	for column, rule := range rules {
		if strings.TrimSpace(column) == "" {
			return Schema{}, fmt.Errorf("validation rule with empty column name")
		}
		if err := v.Struct(rule); err != nil {
			return Schema{}, fmt.Errorf("invalid rule for column %s: %w", column, err)
		}

		copied := Rule{DType: rule.DType}
		if len(rule.AcceptedValues) > 0 {
			set := make(map[string]struct{}, len(rule.AcceptedValues))
			for _, raw := range rule.AcceptedValues {
				canonical, err := coerce(rule.DType, raw)
				if err != nil {
					return Schema{}, fmt.Errorf("accepted value %q for column %s: %w", raw, column, err)
				}
				set[canonical] = struct{}{}
				copied.AcceptedValues = append(copied.AcceptedValues, canonical)
			}
			s.accepted[column] = set
		}

		s.rules[column] = copied
		s.columns = append(s.columns, column)
	}
	sort.Strings(s.columns)

	return s, nil
}

// DefaultSchema returns the reference rule table for two robots and
// encoder/load-cell fields
func DefaultSchema() Schema {
	s, err := NewSchema(DefaultRules())
	if err != nil {
		panic(fmt.Sprintf("default validation schema: %v", err))
	}
	return s
}

// DefaultRules returns the reference rules as a mutable map, suitable as a
// configuration default
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		domain.ColumnRunUUID:    {DType: DTypeFloat},
		domain.ColumnRobotID:    {DType: DTypeInt, AcceptedValues: []string{"1", "2"}},
		domain.ColumnSensorType: {DType: DTypeString, AcceptedValues: []string{"encoder", "load_cell"}},
		domain.ColumnField:      {DType: DTypeString, AcceptedValues: []string{"x", "y", "z", "fx", "fy", "fz"}},
		domain.ColumnTime:       {DType: DTypeString},
		domain.ColumnValue:      {DType: DTypeFloat},
	}
}

// Columns returns the configured column names in sorted order
func (s Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Rule returns the rule for a column
func (s Schema) Rule(column string) (Rule, bool) {
	r, ok := s.rules[column]
	return r, ok
}

// Accepts reports whether the canonical value passes the column's allow-list.
// Columns without an allow-list accept every value.
func (s Schema) Accepts(column, canonical string) bool {
	set, ok := s.accepted[column]
	if !ok {
		return true
	}
	_, ok = set[canonical]
	return ok
}

// coerce converts a raw cell to the canonical string form of the dtype
func coerce(dtype DType, raw string) (string, error) {
	value := strings.TrimSpace(raw)
	switch dtype {
	case DTypeString:
		return value, nil
	case DTypeInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			// Integral floats such as "2.0" coerce to int
			f, ferr := strconv.ParseFloat(value, 64)
			if ferr != nil {
				return "", fmt.Errorf("not an integer: %q", raw)
			}
			var ok bool
			if n, ok = domain.IntegralFloat(f); !ok {
				return "", fmt.Errorf("not an integer: %q", raw)
			}
		}
		return strconv.FormatInt(n, 10), nil
	case DTypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", fmt.Errorf("not a float: %q", raw)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unknown dtype %q", dtype)
	}
}
