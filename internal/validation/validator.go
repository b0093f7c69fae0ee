package validation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"robokin/pkg/contracts/domain"
)

// Drop rule suffixes reported in the DropReport as "<column>.<suffix>"
const (
	RuleNull           = "null"
	RuleDType          = "dtype"
	RuleAcceptedValues = "accepted_values"
)

// SchemaValidator enforces a Schema on raw tables. It holds no state besides
// the schema and logger and is safe for concurrent use.
type SchemaValidator struct {
	schema Schema
	logger *slog.Logger
}

// NewSchemaValidator creates a validator for the given schema
func NewSchemaValidator(schema Schema, logger *slog.Logger) *SchemaValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchemaValidator{
		schema: schema,
		logger: logger.With(slog.String("component", "schema_validator")),
	}
}

// Validate returns a new table holding only the rows that pass every rule,
// with validated cells rewritten to their canonical form. Columns that are
// not configured pass through untouched. A row is attributed to the first
// failing rule in sorted column order, so the kept set does not depend on
// rule order.
func (v *SchemaValidator) Validate(ctx context.Context, table *domain.Table) (*domain.Table, domain.DropReport, error) {
	if table == nil {
		return nil, nil, fmt.Errorf("validate: nil table")
	}

	columns := v.schema.Columns()
	indexes := make([]int, len(columns))
	for i, column := range columns {
		idx := table.Index(column)
		if idx < 0 {
			return nil, nil, fmt.Errorf("validate: %w: %s", domain.ErrMissingColumn, column)
		}
		indexes[i] = idx
	}

	out := &domain.Table{
		Header: append([]string(nil), table.Header...),
		Rows:   make([][]string, 0, len(table.Rows)),
	}
	drops := domain.DropReport{}

	for _, row := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("validate: %w", err)
		}

		kept := make([]string, len(table.Header))
		copy(kept, row)

		ok := true
		for i, column := range columns {
			idx := indexes[i]
			var raw string
			if idx < len(row) {
				raw = row[idx]
			}

			rule, _ := v.schema.Rule(column)
			if isNull(raw) {
				drops.Add(column + "." + RuleNull)
				ok = false
				break
			}
			canonical, err := coerce(rule.DType, raw)
			if err != nil || !finite(rule.DType, canonical) {
				drops.Add(column + "." + RuleDType)
				ok = false
				break
			}
			if !v.schema.Accepts(column, canonical) {
				drops.Add(column + "." + RuleAcceptedValues)
				ok = false
				break
			}
			kept[idx] = canonical
		}

		if ok {
			out.Rows = append(out.Rows, kept)
		}
	}

	v.logger.DebugContext(ctx, "schema validation finished",
		slog.Int("input_rows", len(table.Rows)),
		slog.Int("kept_rows", len(out.Rows)),
		slog.Int("dropped_rows", drops.Total()))

	return out, drops, nil
}

// isNull treats empty cells and the usual textual null markers as missing
func isNull(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "nan", "null", "none", "na", "n/a":
		return true
	}
	return false
}

// finite rejects float cells that parse to NaN or an infinity
func finite(dtype DType, canonical string) bool {
	if dtype != DTypeFloat {
		return true
	}
	f, err := strconv.ParseFloat(canonical, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}
