package services

import (
	"context"
	"fmt"
	"log/slog"

	"robokin/internal/operations"
	"robokin/pkg/contracts/domain"
)

// RunStatsReader reads the persisted run statistics
type RunStatsReader interface {
	ReadRunStats(ctx context.Context) ([]domain.RunStats, error)
}

// OperationView combines the stored job with the live step snapshot
type OperationView struct {
	Job      *operations.Job               `json:"job"`
	Snapshot *operations.OperationSnapshot `json:"snapshot,omitempty"`
}

// OperationService submits pipeline operations and reports on them
type OperationService struct {
	queue   *operations.JobQueue
	manager *operations.Manager
	runs    RunStatsReader
	logger  *slog.Logger
}

// NewOperationService creates the service. runs may be nil when no sqlite
// sink is configured.
func NewOperationService(queue *operations.JobQueue, manager *operations.Manager, runs RunStatsReader, logger *slog.Logger) *OperationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationService{
		queue:   queue,
		manager: manager,
		runs:    runs,
		logger:  logger.With(slog.String("service", "operations")),
	}
}

// StartOperation queues req and returns the pending job
func (s *OperationService) StartOperation(ctx context.Context, req operations.OperationRequest) (*operations.Job, error) {
	job, err := s.queue.Enqueue(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "operation rejected",
			slog.String("input", req.InputPath),
			slog.String("error", err.Error()))
		return nil, err
	}
	return job, nil
}

// GetOperation returns the job and, while the broadcaster still holds it,
// its step snapshot
func (s *OperationService) GetOperation(ctx context.Context, id string) (*OperationView, error) {
	job, err := s.queue.GetJob(id)
	if err != nil {
		return nil, err
	}
	view := &OperationView{Job: job}
	if snapshot, ok := s.manager.GetBroadcaster().GetSnapshot(id); ok {
		view.Snapshot = snapshot
	}
	return view, nil
}

// ListOperations returns jobs matching filter, newest first
func (s *OperationService) ListOperations(ctx context.Context, filter operations.JobFilter) ([]*operations.Job, error) {
	return s.queue.ListJobs(filter)
}

// CancelOperation cancels a pending or running job
func (s *OperationService) CancelOperation(ctx context.Context, id string) error {
	if err := s.queue.CancelJob(id); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "operation cancel requested", slog.String("operation_id", id))
	return nil
}

// ListRuns returns the run statistics of the last persisted operation
func (s *OperationService) ListRuns(ctx context.Context) ([]domain.RunStats, error) {
	if s.runs == nil {
		return nil, ErrRunsUnavailable
	}
	stats, err := s.runs.ReadRunStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading run stats: %w", err)
	}
	if stats == nil {
		stats = []domain.RunStats{}
	}
	return stats, nil
}

// QueueStats returns job counts per status
func (s *OperationService) QueueStats() map[operations.JobStatus]int {
	return s.queue.Stats()
}
