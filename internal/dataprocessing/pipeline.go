package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"robokin/pkg/contracts/domain"
)

// TableValidator filters a raw table and reports the rows it dropped
type TableValidator interface {
	Validate(ctx context.Context, table *domain.Table) (*domain.Table, domain.DropReport, error)
}

// Result is the complete output of one pipeline run. A Result with no
// samples is the explicit no-data outcome: every table is empty.
type Result struct {
	Schema   *FeatureSchema
	Samples  []domain.RawSample
	Features []FeatureRun
	Stats    []domain.RunStats
	Drops    domain.DropReport
	Pivot    PivotReport
}

// Empty reports whether nothing survived validation
func (r *Result) Empty() bool {
	return r == nil || len(r.Samples) == 0
}

// FeatureRowCount returns the number of rows of the interpolated table
func (r *Result) FeatureRowCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, run := range r.Features {
		n += len(run.Rows)
	}
	return n
}

// Pipeline runs validation, time normalization, pivot, interpolation,
// derivation and aggregation. Stages up to the pivot work on the whole
// dataset; the per-run stages fan out over run partitions.
type Pipeline struct {
	schema         *FeatureSchema
	validator      TableValidator
	policy         DuplicatePolicy
	maxConcurrency int
	logger         *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithDuplicatePolicy sets how duplicate pivot cells are combined
func WithDuplicatePolicy(p DuplicatePolicy) Option {
	return func(pl *Pipeline) { pl.policy = p }
}

// WithMaxConcurrency bounds the number of runs processed at once
func WithMaxConcurrency(n int) Option {
	return func(pl *Pipeline) { pl.maxConcurrency = n }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) { pl.logger = l }
}

// NewPipeline creates a pipeline over the given schema and validator
func NewPipeline(schema *FeatureSchema, validator TableValidator, opts ...Option) *Pipeline {
	p := &Pipeline{
		schema:    schema,
		validator: validator,
		policy:    DuplicatePolicyLast,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "pipeline"))
	return p
}

// Schema returns the feature schema
func (p *Pipeline) Schema() *FeatureSchema { return p.schema }

// Validate applies the validator to the raw table
func (p *Pipeline) Validate(ctx context.Context, table *domain.Table) (*domain.Table, domain.DropReport, error) {
	if p.validator == nil {
		return table, domain.DropReport{}, nil
	}
	return p.validator.Validate(ctx, table)
}

// Normalize decodes validated rows and converts their timestamps
func (p *Pipeline) Normalize(ctx context.Context, table *domain.Table) ([]domain.RawSample, domain.DropReport, error) {
	samples, drops, err := DecodeSamples(table)
	if err != nil {
		return nil, nil, err
	}
	samples, timeDrops := NormalizeTimes(samples)
	drops.Merge(timeDrops)

	p.logger.DebugContext(ctx, "timestamps normalized",
		slog.String("samples", humanize.Comma(int64(len(samples)))),
		slog.Int("dropped", drops.Total()))
	return samples, drops, nil
}

// Pivot builds the wide table under the configured duplicate policy
func (p *Pipeline) Pivot(ctx context.Context, samples []domain.RawSample) (*WideTable, PivotReport, error) {
	table, report, err := Pivot(samples, p.schema, p.policy)
	if err != nil {
		return nil, report, err
	}
	if report.Duplicates > 0 {
		p.logger.WarnContext(ctx, "duplicate cells combined",
			slog.Int("duplicates", report.Duplicates),
			slog.String("policy", string(p.policy)))
	}
	return table, report, nil
}

// InterpolateRuns partitions the wide table by run and densifies every
// partition concurrently
func (p *Pipeline) InterpolateRuns(ctx context.Context, table *WideTable) ([]RunPartition, error) {
	if table.Len() == 0 {
		return nil, nil
	}
	return MapPartitions(ctx, Partition(table.Rows), p.maxConcurrency,
		func(_ context.Context, part RunPartition) (RunPartition, error) {
			return Interpolate(part), nil
		})
}

// DeriveRuns computes kinematic features for every dense run concurrently
func (p *Pipeline) DeriveRuns(ctx context.Context, parts []RunPartition) ([]FeatureRun, error) {
	return MapPartitions(ctx, parts, p.maxConcurrency,
		func(_ context.Context, part RunPartition) (FeatureRun, error) {
			return Derive(p.schema, part)
		})
}

// SummarizeRuns aggregates every derived run concurrently
func (p *Pipeline) SummarizeRuns(ctx context.Context, runs []FeatureRun) ([]domain.RunStats, error) {
	return MapPartitions(ctx, runs, p.maxConcurrency,
		func(_ context.Context, run FeatureRun) (domain.RunStats, error) {
			return Summarize(p.schema, run), nil
		})
}

// Run executes every stage over table
func (p *Pipeline) Run(ctx context.Context, table *domain.Table) (*Result, error) {
	result := &Result{Schema: p.schema, Drops: domain.DropReport{}}

	validated, drops, err := p.Validate(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	result.Drops.Merge(drops)

	samples, drops, err := p.Normalize(ctx, validated)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	result.Drops.Merge(drops)
	result.Samples = samples

	wide, report, err := p.Pivot(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("pivot: %w", err)
	}
	result.Pivot = report
	if report.Unmapped > 0 {
		result.Drops[DropRuleUnmapped] += report.Unmapped
	}

	dense, err := p.InterpolateRuns(ctx, wide)
	if err != nil {
		return nil, fmt.Errorf("interpolate: %w", err)
	}
	result.Features, err = p.DeriveRuns(ctx, dense)
	if err != nil {
		return nil, fmt.Errorf("derive: %w", err)
	}
	result.Stats, err = p.SummarizeRuns(ctx, result.Features)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	p.logger.InfoContext(ctx, "pipeline finished",
		slog.String("samples", humanize.Comma(int64(len(result.Samples)))),
		slog.String("feature_rows", humanize.Comma(int64(result.FeatureRowCount()))),
		slog.Int("runs", len(result.Stats)),
		slog.Int("dropped", result.Drops.Total()))

	return result, nil
}
