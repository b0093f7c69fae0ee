// Package dataprocessing turns long-format robot telemetry into a dense,
// per-run feature table with kinematic features and per-run statistics.
//
// # Architecture
//
// The package is organized as a chain of pure stages:
//
//  1. Normalize: decodes validated rows into samples and parses timestamps to epoch milliseconds
//  2. Pivot: builds one row per (run, time) over the columns of a FeatureSchema
//  3. Interpolate: densifies each run with time-weighted linear interpolation
//  4. Derive: computes per-axis distance, velocity, acceleration and magnitudes
//  5. Summarize: reduces each run to start, end, duration and distance per robot
//
// Stages 3 to 5 work on RunPartition values and never read across runs, so
// Pipeline fans them out with MapPartitions.
//
// # Usage
//
//	schema := dataprocessing.DefaultFeatureSchema()
//	validator := validation.NewSchemaValidator(validation.DefaultSchema(), logger)
//	p := dataprocessing.NewPipeline(schema, validator, dataprocessing.WithMaxConcurrency(4))
//	result, err := p.Run(ctx, table)
//
// # Data Flow
//
//	Table → Validate → RawSamples → Pivot → WideTable → Partition → Interpolate → Derive → Summarize
//
// # Edge Cases
//
//   - A column without samples in a run is zero-filled for that run
//   - The first row of a run has zero distance, velocity and acceleration
//   - A zero time step yields zero derivatives instead of NaN or Inf
//   - An empty dataset produces an empty Result, not an error
package dataprocessing
