package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"robokin/internal/infrastructure"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ErrQueueFull is returned by Enqueue when no buffer slot is free
var ErrQueueFull = errors.New("job queue is full")

// Job is one asynchronous pipeline operation. The job ID is the operation ID.
type Job struct {
	ID          string             `json:"id"`
	Status      JobStatus          `json:"status"`
	Request     OperationRequest   `json:"request"`
	Response    *OperationResponse `json:"response,omitempty"`
	Error       string             `json:"error,omitempty"`
	TraceID     string             `json:"trace_id,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// JobStore interface for job persistence
type JobStore interface {
	CreateJob(job *Job) error
	GetJob(id string) (*Job, error)
	UpdateJob(job *Job) error
	ListJobs(filter JobFilter) ([]*Job, error)
	DeleteJob(id string) error
}

// JobFilter for querying jobs
type JobFilter struct {
	Status JobStatus
	Since  time.Time
	Limit  int
}

// JobQueue runs enqueued operations on a fixed pool of workers
type JobQueue struct {
	jobs     chan string
	workers  int
	wg       sync.WaitGroup
	store    JobStore
	manager  *Manager
	logger   *slog.Logger
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewJobQueue creates a new job queue
func NewJobQueue(workers int, store JobStore, manager *Manager, logger *slog.Logger) *JobQueue {
	if workers <= 0 {
		workers = 2
	}
	if store == nil {
		store = NewMemoryJobStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobQueue{
		jobs:     make(chan string, workers*8),
		workers:  workers,
		store:    store,
		manager:  manager,
		logger:   logger.With(slog.String("component", "jobqueue")),
		shutdown: make(chan struct{}),
	}
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

// Stop signals the workers and waits for running jobs up to timeout
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.stopOnce.Do(func() { close(q.shutdown) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("job queue stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for workers to finish")
	}
}

// Enqueue stores a pending job for req and schedules it
func (q *JobQueue) Enqueue(ctx context.Context, req OperationRequest) (*Job, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	job := &Job{
		ID:        req.ID,
		Status:    JobStatusPending,
		Request:   req,
		TraceID:   infrastructure.GetTraceID(ctx),
		CreatedAt: time.Now(),
	}
	if err := q.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.jobs <- job.ID:
		q.logger.InfoContext(ctx, "job enqueued",
			slog.String("job_id", job.ID),
			slog.String("input", req.InputPath))
		return job, nil
	default:
		job.Status = JobStatusFailed
		job.Error = ErrQueueFull.Error()
		_ = q.store.UpdateJob(job)
		return nil, ErrQueueFull
	}
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	return q.store.GetJob(id)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]*Job, error) {
	return q.store.ListJobs(filter)
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) error {
	job, err := q.store.GetJob(id)
	if err != nil {
		return err
	}

	switch job.Status {
	case JobStatusPending:
		now := time.Now()
		job.Status = JobStatusCancelled
		job.CompletedAt = &now
		return q.store.UpdateJob(job)
	case JobStatusRunning:
		return q.manager.CancelOperation(id)
	default:
		return &OperationError{
			Type:    ErrorTypeInvalidState,
			Message: fmt.Sprintf("job %s cannot be cancelled (status: %s)", id, job.Status),
		}
	}
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case id := <-q.jobs:
			q.processJob(ctx, id, logger)
		}
	}
}

func (q *JobQueue) processJob(ctx context.Context, id string, logger *slog.Logger) {
	logger = logger.With(slog.String("job_id", id))

	job, err := q.store.GetJob(id)
	if err != nil {
		logger.Error("job vanished before execution", slog.String("error", err.Error()))
		return
	}
	if job.Status != JobStatusPending {
		logger.Info("skipping job", slog.String("status", string(job.Status)))
		return
	}
	if job.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, job.TraceID)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job processing panicked", slog.Any("panic", r))
			q.finish(job, nil, fmt.Errorf("job processing panicked: %v", r), logger)
		}
	}()

	now := time.Now()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	if err := q.store.UpdateJob(job); err != nil {
		logger.Error("failed to update job status", slog.String("error", err.Error()))
	}

	resp, err := q.manager.Execute(ctx, job.Request)
	q.finish(job, resp, err, logger)
}

func (q *JobQueue) finish(job *Job, resp *OperationResponse, err error, logger *slog.Logger) {
	now := time.Now()
	job.CompletedAt = &now
	job.Response = resp

	switch {
	case err == nil:
		job.Status = JobStatusCompleted
	case GetErrorType(err) == ErrorTypeCancellation:
		job.Status = JobStatusCancelled
		job.Error = err.Error()
	default:
		job.Status = JobStatusFailed
		job.Error = err.Error()
	}

	if uerr := q.store.UpdateJob(job); uerr != nil {
		logger.Error("failed to update job completion", slog.String("error", uerr.Error()))
	}
	logger.Info("job finished", slog.String("status", string(job.Status)))
}

// Stats returns job counts per status
func (q *JobQueue) Stats() map[JobStatus]int {
	stats := make(map[JobStatus]int)
	jobs, err := q.store.ListJobs(JobFilter{})
	if err != nil {
		return stats
	}
	for _, job := range jobs {
		stats[job.Status]++
	}
	return stats
}
