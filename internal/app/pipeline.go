package app

import (
	"errors"
	"fmt"
	"log/slog"

	"robokin/internal/config"
	"robokin/internal/dataprocessing"
	"robokin/internal/exporter"
	"robokin/internal/infrastructure"
	"robokin/internal/operations"
	"robokin/internal/storage"
	"robokin/internal/validation"
)

// Sinks are the result writers selected by the storage section
type Sinks struct {
	Multi  *storage.MultiSink
	SQLite *storage.SqliteSink
}

// Sink returns the fan-out sink, or nil when no sink is configured
func (s *Sinks) Sink() operations.Sink {
	if s == nil || s.Multi == nil || s.Multi.Len() == 0 {
		return nil
	}
	return s.Multi
}

// Close closes every sink
func (s *Sinks) Close() error {
	if s == nil || s.Multi == nil {
		return nil
	}
	return s.Multi.Close()
}

// NewPipeline builds the processing pipeline from the rule table and the
// pipeline section
func NewPipeline(cfg *config.Config, logger *slog.Logger) (*dataprocessing.Pipeline, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, fmt.Errorf("invalid rule table: %w", err)
	}
	features, err := cfg.FeatureSchema()
	if err != nil {
		return nil, fmt.Errorf("invalid feature schema: %w", err)
	}

	return dataprocessing.NewPipeline(features,
		validation.NewSchemaValidator(schema, logger),
		dataprocessing.WithDuplicatePolicy(cfg.DuplicatePolicy()),
		dataprocessing.WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
		dataprocessing.WithLogger(logger),
	), nil
}

// NewSinks opens the sinks named by cfg.Storage.Sink
func NewSinks(cfg config.StorageConfig, logger *slog.Logger) (*Sinks, error) {
	sinks := &Sinks{}
	var named []storage.NamedSink

	switch cfg.Sink {
	case "sqlite", "both":
		sinks.SQLite = storage.NewSqliteSink(cfg.SQLitePath, storage.WithSqliteLogger(logger))
		named = append(named, storage.NamedSink{Name: "sqlite", Sink: sinks.SQLite})
	case "csv", "none", "":
	default:
		return nil, fmt.Errorf("unsupported sink: %s", cfg.Sink)
	}
	if cfg.Sink == "csv" || cfg.Sink == "both" {
		named = append(named, storage.NamedSink{
			Name: "csv",
			Sink: exporter.NewTableExporter(cfg.CSVDir, false, logger),
		})
	}

	sinks.Multi = storage.NewMultiSink(named...)
	return sinks, nil
}

// Runtime is the pipeline side of robokin: everything needed to execute an
// operation, with or without the HTTP server
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Pipeline *dataprocessing.Pipeline
	Sinks    *Sinks
	Manager  *operations.Manager
}

// Build assembles a Runtime. hub and metrics may be nil.
func Build(cfg *config.Config, logger *slog.Logger, hub operations.WebSocketHub, metrics *infrastructure.PipelineMetrics) (*Runtime, error) {
	pipeline, err := NewPipeline(cfg, logger)
	if err != nil {
		return nil, err
	}
	sinks, err := NewSinks(cfg.Storage, logger)
	if err != nil {
		return nil, err
	}

	opConfig := operations.NewConfigBuilder().
		WithDefaultTimeout(cfg.Pipeline.StageTimeout).
		WithMaxAttempts(cfg.Pipeline.RetryAttempts).
		Build()
	manager := operations.NewManager(hub, nil, opConfig,
		operations.WithManagerLogger(logger),
		operations.WithTracer(operations.NewOperationTracer(metrics)))

	err = operations.RegisterPipelineStages(manager, operations.StageDeps{
		Pipeline: pipeline,
		Sink:     sinks.Sink(),
		Logger:   logger,
	})
	if err != nil {
		manager.Close()
		return nil, errors.Join(fmt.Errorf("failed to register pipeline steps: %w", err), sinks.Close())
	}

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipeline,
		Sinks:    sinks,
		Manager:  manager,
	}, nil
}

// Close stops the manager and closes the sinks
func (rt *Runtime) Close() error {
	rt.Manager.Close()
	return rt.Sinks.Close()
}
