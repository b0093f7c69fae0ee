package operations

import (
	"time"

	"robokin/pkg/contracts/domain"
)

// Pipeline step identifiers
const (
	StageIDIngest      = "ingest"
	StageIDValidate    = "validate"
	StageIDNormalize   = "normalize"
	StageIDPivot       = "pivot"
	StageIDInterpolate = "interpolate"
	StageIDDerive      = "derive"
	StageIDAggregate   = "aggregate"
	StageIDPersist     = "persist"
)

// Pipeline step names
const (
	StageNameIngest      = "Telemetry Ingest"
	StageNameValidate    = "Schema Validation"
	StageNameNormalize   = "Time Normalization"
	StageNamePivot       = "Pivot"
	StageNameInterpolate = "Run Interpolation"
	StageNameDerive      = "Kinematic Features"
	StageNameAggregate   = "Run Statistics"
	StageNamePersist     = "Persist Results"
)

// WebSocket event types
const (
	EventTypeOperationSnapshot = "operation:snapshot"
)

// Default timeouts
const (
	DefaultStageTimeout   = 10 * time.Minute
	DefaultIngestTimeout  = 5 * time.Minute
	DefaultPersistTimeout = 5 * time.Minute
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration. Pipeline steps are
// deterministic, so only errors marked retryable are attempted again.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  1,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest asks for one pipeline execution over an input file
type OperationRequest struct {
	ID        string `json:"id,omitempty"`
	InputPath string `json:"input_path" validate:"required,telemetryfile"`
	Sheet     string `json:"sheet,omitempty" validate:"max=31"`
}

// OperationResponse represents the response from an operation execution
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`

	NoData      bool              `json:"no_data"`
	Drops       domain.DropReport `json:"drops"`
	Samples     int               `json:"samples"`
	FeatureRows int               `json:"feature_rows"`
	Stats       []domain.RunStats `json:"run_stats"`
}
