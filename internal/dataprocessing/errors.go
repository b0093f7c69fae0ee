package dataprocessing

import "errors"

var (
	// ErrDuplicateCell is returned by Pivot under DuplicatePolicyError when two
	// samples map to the same (run, time, field, robot) cell
	ErrDuplicateCell = errors.New("duplicate cell")

	// ErrSparseInput is returned when a stage that requires a dense table
	// receives missing values
	ErrSparseInput = errors.New("table contains missing values")

	// ErrInvalidSchema is returned for feature schemas that cannot produce a
	// stable set of column names
	ErrInvalidSchema = errors.New("invalid feature schema")
)

// Drop rules reported by the core in addition to the validator's
const (
	DropRuleTimeFormat     = "time.format"
	DropRuleRunNonIntegral = "run_uuid.non_integral"
	DropRuleValueDecode    = "value.decode"
	DropRuleUnmapped       = "unmapped_column"
)
