// Package operations runs the telemetry pipeline as a sequence of steps.
//
// A Manager orders the registered steps by their dependencies, runs them one
// at a time with a per-step timeout, and retries a step only when it failed
// with a retryable error. Every state change is pushed through a
// StatusBroadcaster to the WebSocket hub as an operation snapshot.
//
// The eight pipeline steps are registered with RegisterPipelineStages:
//
//	ingest -> validate -> normalize -> pivot -> interpolate -> derive -> aggregate -> persist
//
// Each step reads the output of its predecessor from OperationState.Data and
// stores its own. An input in which no row survives validation completes
// successfully with NoData set on the response.
//
// JobQueue wraps the Manager for asynchronous execution. Jobs are kept in a
// JobStore and picked up by a fixed pool of workers.
//
// Example usage:
//
//	manager := operations.NewManager(hub, operations.NewRegistry(), operations.NewConfig(),
//		operations.WithManagerLogger(logger))
//	if err := operations.RegisterPipelineStages(manager, operations.StageDeps{
//		Pipeline: pipeline,
//		Sink:     sink,
//		Logger:   logger,
//	}); err != nil {
//		return err
//	}
//	resp, err := manager.Execute(ctx, operations.OperationRequest{InputPath: "telemetry.csv"})
package operations
