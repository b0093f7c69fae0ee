package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/internal/operations"
	"robokin/pkg/contracts/domain"
)

// gateStep blocks until released or cancelled
type gateStep struct {
	operations.BaseStage
	release chan struct{}
}

func newGateStep() *gateStep {
	return &gateStep{
		BaseStage: operations.NewBaseStage("gate", "Gate", nil),
		release:   make(chan struct{}),
	}
}

func (s *gateStep) Execute(ctx context.Context, state *operations.OperationState) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type stubRuns struct {
	stats []domain.RunStats
	err   error
}

func (s stubRuns) ReadRunStats(context.Context) ([]domain.RunStats, error) {
	return s.stats, s.err
}

func newTestService(t *testing.T, runs RunStatsReader) (*OperationService, *gateStep) {
	t.Helper()
	step := newGateStep()
	m := operations.NewManager(nil, nil, nil)
	t.Cleanup(m.Close)
	require.NoError(t, m.RegisterStage(step))

	q := operations.NewJobQueue(1, nil, m, nil)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = q.Stop(time.Second)
	})
	return NewOperationService(q, m, runs, nil), step
}

func waitJob(t *testing.T, s *OperationService, id string, want operations.JobStatus) *OperationView {
	t.Helper()
	var view *OperationView
	require.Eventually(t, func() bool {
		var err error
		view, err = s.GetOperation(context.Background(), id)
		return err == nil && view.Job.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return view
}

func TestOperationService_Lifecycle(t *testing.T) {
	s, step := newTestService(t, nil)
	ctx := context.Background()

	job, err := s.StartOperation(ctx, operations.OperationRequest{InputPath: "run.csv"})
	require.NoError(t, err)
	assert.Equal(t, operations.JobStatusPending, job.Status)

	running := waitJob(t, s, job.ID, operations.JobStatusRunning)
	require.Eventually(t, func() bool {
		view, err := s.GetOperation(ctx, job.ID)
		return err == nil && view.Snapshot != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "run.csv", running.Job.Request.InputPath)

	close(step.release)
	done := waitJob(t, s, job.ID, operations.JobStatusCompleted)
	require.NotNil(t, done.Job.Response)

	jobs, err := s.ListOperations(ctx, operations.JobFilter{Status: operations.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, s.QueueStats()[operations.JobStatusCompleted])
}

func TestOperationService_Cancel(t *testing.T) {
	s, _ := newTestService(t, nil)
	ctx := context.Background()

	job, err := s.StartOperation(ctx, operations.OperationRequest{InputPath: "run.csv"})
	require.NoError(t, err)
	waitJob(t, s, job.ID, operations.JobStatusRunning)

	require.Eventually(t, func() bool {
		return s.CancelOperation(ctx, job.ID) == nil
	}, time.Second, 5*time.Millisecond)
	waitJob(t, s, job.ID, operations.JobStatusCancelled)

	err = s.CancelOperation(ctx, job.ID)
	assert.Equal(t, operations.ErrorTypeInvalidState, operations.GetErrorType(err))

	_, err = s.GetOperation(ctx, "missing")
	assert.ErrorIs(t, err, operations.ErrOperationNotFound)
}

func TestOperationService_ListRuns(t *testing.T) {
	tests := []struct {
		name    string
		runs    RunStatsReader
		want    []domain.RunStats
		wantErr error
	}{
		{"no store", nil, nil, ErrRunsUnavailable},
		{"empty store", stubRuns{}, []domain.RunStats{}, nil},
		{"stats", stubRuns{stats: []domain.RunStats{{Run: 4, DurationMs: 40}}}, []domain.RunStats{{Run: 4, DurationMs: 40}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestService(t, tt.runs)
			got, err := s.ListRuns(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	s, _ := newTestService(t, stubRuns{err: errors.New("disk I/O error")})
	_, err := s.ListRuns(context.Background())
	assert.ErrorContains(t, err, "disk I/O error")
}
