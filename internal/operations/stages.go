package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"robokin/internal/dataprocessing"
	"robokin/internal/ingest"
	"robokin/internal/validation"
)

// StageDeps are the collaborators shared by the pipeline steps
type StageDeps struct {
	Pipeline *dataprocessing.Pipeline
	Files    *validation.FileValidator
	Reader   TableReader
	Sink     Sink
	Logger   *slog.Logger
}

// RegisterPipelineStages registers the eight pipeline steps in order
func RegisterPipelineStages(m *Manager, deps StageDeps) error {
	if deps.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reader == nil {
		deps.Reader = ingest.ReadFile
	}
	if deps.Files == nil {
		deps.Files = validation.NewFileValidator(deps.Logger)
	}

	steps := []Step{
		NewIngestStage(deps.Files, deps.Reader, deps.Logger),
		NewValidateStage(deps.Pipeline, deps.Logger),
		NewNormalizeStage(deps.Pipeline, deps.Logger),
		NewPivotStage(deps.Pipeline, deps.Logger),
		NewInterpolateStage(deps.Pipeline, deps.Logger),
		NewDeriveStage(deps.Pipeline, deps.Logger),
		NewAggregateStage(deps.Pipeline, deps.Logger),
		NewPersistStage(deps.Sink, deps.Logger),
	}
	for _, step := range steps {
		if err := m.RegisterStage(step); err != nil {
			return err
		}
	}
	return nil
}

func stageLogger(logger *slog.Logger, id string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("step", id))
}

func setMeta(state *OperationState, stageID, key string, value interface{}) {
	if s := state.GetStage(stageID); s != nil {
		s.SetMetadata(key, value)
	}
}

// IngestStage reads the input file into a raw table
type IngestStage struct {
	BaseStage
	files  *validation.FileValidator
	reader TableReader
	logger *slog.Logger
}

// NewIngestStage creates the ingest step
func NewIngestStage(files *validation.FileValidator, reader TableReader, logger *slog.Logger) *IngestStage {
	return &IngestStage{
		BaseStage: NewBaseStage(StageIDIngest, StageNameIngest, nil),
		files:     files,
		reader:    reader,
		logger:    stageLogger(logger, StageIDIngest),
	}
}

// Validate checks that the request names a readable input file
func (s *IngestStage) Validate(state *OperationState) error {
	if state.Request.InputPath == "" {
		return errors.New("input path is required")
	}
	_, err := s.files.ValidateInputFile(state.Request.InputPath)
	return err
}

// Execute reads the input table
func (s *IngestStage) Execute(ctx context.Context, state *OperationState) error {
	table, err := s.reader(ctx, state.Request.InputPath, ingest.Options{Sheet: state.Request.Sheet})
	if err != nil {
		return err
	}
	state.Data.Input = table

	setMeta(state, s.ID(), "rows", table.Len())
	s.logger.InfoContext(ctx, "input table read",
		slog.String("path", state.Request.InputPath),
		slog.Int("rows", table.Len()))
	return nil
}

// ValidateStage applies the schema validator
type ValidateStage struct {
	BaseStage
	pipeline *dataprocessing.Pipeline
	logger   *slog.Logger
}

// NewValidateStage creates the validation step
func NewValidateStage(p *dataprocessing.Pipeline, logger *slog.Logger) *ValidateStage {
	return &ValidateStage{
		BaseStage: NewBaseStage(StageIDValidate, StageNameValidate, []string{StageIDIngest}),
		pipeline:  p,
		logger:    stageLogger(logger, StageIDValidate),
	}
}

// Validate requires an input table
func (s *ValidateStage) Validate(state *OperationState) error {
	if state.Data.Input == nil {
		return errors.New("no input table")
	}
	return nil
}

// Execute filters the input table
func (s *ValidateStage) Execute(ctx context.Context, state *OperationState) error {
	validated, drops, err := s.pipeline.Validate(ctx, state.Data.Input)
	if err != nil {
		return err
	}
	state.Data.Validated = validated
	state.Data.Result.Drops.Merge(drops)

	setMeta(state, s.ID(), "rows", validated.Len())
	setMeta(state, s.ID(), "dropped", drops.Total())
	return nil
}

// NormalizeStage decodes rows and converts timestamps
type NormalizeStage struct {
	BaseStage
	pipeline *dataprocessing.Pipeline
	logger   *slog.Logger
}

// NewNormalizeStage creates the time normalization step
func NewNormalizeStage(p *dataprocessing.Pipeline, logger *slog.Logger) *NormalizeStage {
	return &NormalizeStage{
		BaseStage: NewBaseStage(StageIDNormalize, StageNameNormalize, []string{StageIDValidate}),
		pipeline:  p,
		logger:    stageLogger(logger, StageIDNormalize),
	}
}

// Validate requires a validated table
func (s *NormalizeStage) Validate(state *OperationState) error {
	if state.Data.Validated == nil {
		return errors.New("no validated table")
	}
	return nil
}

// Execute produces the normalized samples
func (s *NormalizeStage) Execute(ctx context.Context, state *OperationState) error {
	samples, drops, err := s.pipeline.Normalize(ctx, state.Data.Validated)
	if err != nil {
		return err
	}
	result := state.Data.Result
	result.Samples = samples
	result.Drops.Merge(drops)

	setMeta(state, s.ID(), "samples", len(samples))
	setMeta(state, s.ID(), "dropped", drops.Total())
	if len(samples) == 0 {
		s.logger.WarnContext(ctx, "no samples survived validation")
	}
	return nil
}

// PivotStage reshapes samples into the wide table
type PivotStage struct {
	BaseStage
	pipeline *dataprocessing.Pipeline
	logger   *slog.Logger
}

// NewPivotStage creates the pivot step
func NewPivotStage(p *dataprocessing.Pipeline, logger *slog.Logger) *PivotStage {
	return &PivotStage{
		BaseStage: NewBaseStage(StageIDPivot, StageNamePivot, []string{StageIDNormalize}),
		pipeline:  p,
		logger:    stageLogger(logger, StageIDPivot),
	}
}

// Execute pivots the samples. The melted cell count is logged as a
// round-trip check against the pivot report.
func (s *PivotStage) Execute(ctx context.Context, state *OperationState) error {
	result := state.Data.Result
	result.Schema = s.pipeline.Schema()
	wide, report, err := s.pipeline.Pivot(ctx, result.Samples)
	if err != nil {
		return err
	}
	state.Data.Wide = wide
	result.Pivot = report
	if report.Unmapped > 0 {
		result.Drops[dataprocessing.DropRuleUnmapped] += report.Unmapped
	}

	melted := len(dataprocessing.Melt(wide))
	if melted != report.Cells {
		s.logger.WarnContext(ctx, "melted cell count differs from pivot report",
			slog.Int("melted", melted),
			slog.Int("cells", report.Cells))
	}

	setMeta(state, s.ID(), "rows", wide.Len())
	setMeta(state, s.ID(), "cells", report.Cells)
	setMeta(state, s.ID(), "duplicates", report.Duplicates)
	return nil
}

// InterpolateStage densifies each run
type InterpolateStage struct {
	BaseStage
	pipeline *dataprocessing.Pipeline
	logger   *slog.Logger
}

// NewInterpolateStage creates the interpolation step
func NewInterpolateStage(p *dataprocessing.Pipeline, logger *slog.Logger) *InterpolateStage {
	return &InterpolateStage{
		BaseStage: NewBaseStage(StageIDInterpolate, StageNameInterpolate, []string{StageIDPivot}),
		pipeline:  p,
		logger:    stageLogger(logger, StageIDInterpolate),
	}
}

// Validate requires the wide table
func (s *InterpolateStage) Validate(state *OperationState) error {
	if state.Data.Wide == nil {
		return errors.New("no wide table")
	}
	return nil
}

// Execute interpolates every run partition
func (s *InterpolateStage) Execute(ctx context.Context, state *OperationState) error {
	dense, err := s.pipeline.InterpolateRuns(ctx, state.Data.Wide)
	if err != nil {
		return err
	}
	state.Data.Dense = dense
	setMeta(state, s.ID(), "runs", len(dense))
	return nil
}

// DeriveStage computes kinematic features per run
type DeriveStage struct {
	BaseStage
	pipeline *dataprocessing.Pipeline
	logger   *slog.Logger
}

// NewDeriveStage creates the kinematic feature step
func NewDeriveStage(p *dataprocessing.Pipeline, logger *slog.Logger) *DeriveStage {
	return &DeriveStage{
		BaseStage: NewBaseStage(StageIDDerive, StageNameDerive, []string{StageIDInterpolate}),
		pipeline:  p,
		logger:    stageLogger(logger, StageIDDerive),
	}
}

// Execute derives features for every dense run
func (s *DeriveStage) Execute(ctx context.Context, state *OperationState) error {
	features, err := s.pipeline.DeriveRuns(ctx, state.Data.Dense)
	if err != nil {
		return err
	}
	result := state.Data.Result
	result.Features = features
	setMeta(state, s.ID(), "rows", result.FeatureRowCount())
	return nil
}

// AggregateStage summarises each run
type AggregateStage struct {
	BaseStage
	pipeline *dataprocessing.Pipeline
	logger   *slog.Logger
}

// NewAggregateStage creates the run statistics step
func NewAggregateStage(p *dataprocessing.Pipeline, logger *slog.Logger) *AggregateStage {
	return &AggregateStage{
		BaseStage: NewBaseStage(StageIDAggregate, StageNameAggregate, []string{StageIDDerive}),
		pipeline:  p,
		logger:    stageLogger(logger, StageIDAggregate),
	}
}

// Execute computes the per-run statistics
func (s *AggregateStage) Execute(ctx context.Context, state *OperationState) error {
	result := state.Data.Result
	stats, err := s.pipeline.SummarizeRuns(ctx, result.Features)
	if err != nil {
		return err
	}
	result.Stats = stats
	setMeta(state, s.ID(), "runs", len(stats))
	return nil
}

// PersistStage hands the result to the configured sink
type PersistStage struct {
	BaseStage
	sink   Sink
	logger *slog.Logger
}

// NewPersistStage creates the persist step. A nil sink keeps results in
// memory only.
func NewPersistStage(sink Sink, logger *slog.Logger) *PersistStage {
	return &PersistStage{
		BaseStage: NewBaseStage(StageIDPersist, StageNamePersist, []string{StageIDAggregate}),
		sink:      sink,
		logger:    stageLogger(logger, StageIDPersist),
	}
}

// Execute writes the result
func (s *PersistStage) Execute(ctx context.Context, state *OperationState) error {
	if s.sink == nil {
		setMeta(state, s.ID(), "written", false)
		return nil
	}
	if err := s.sink.Write(ctx, state.Data.Result); err != nil {
		return NewExecutionError(s.ID(), fmt.Errorf("sink write: %w", err), true)
	}
	setMeta(state, s.ID(), "written", true)
	return nil
}
