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

// Manager orchestrates operation execution
type Manager struct {
	registry    *Registry
	config      *Config
	broadcaster *StatusBroadcaster
	tracer      *OperationTracer
	logger      *slog.Logger

	mu         sync.RWMutex
	operations map[string]*runningOperation
}

type runningOperation struct {
	state  *OperationState
	cancel context.CancelFunc
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithTracer sets the span and metric recorder
func WithTracer(tracer *OperationTracer) ManagerOption {
	return func(m *Manager) { m.tracer = tracer }
}

// NewManager creates a new operation manager
func NewManager(hub WebSocketHub, registry *Registry, config *Config, opts ...ManagerOption) *Manager {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}

	m := &Manager{
		registry:   registry,
		config:     config,
		logger:     slog.Default(),
		operations: make(map[string]*runningOperation),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "operations"))
	m.broadcaster = NewStatusBroadcaster(hub, m.logger)

	return m
}

// RegisterStage registers a Step with the operation
func (m *Manager) RegisterStage(step Step) error {
	return m.registry.Register(step)
}

// GetRegistry returns the step registry
func (m *Manager) GetRegistry() *Registry {
	return m.registry
}

// GetBroadcaster returns the status broadcaster
func (m *Manager) GetBroadcaster() *StatusBroadcaster {
	return m.broadcaster
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Execute runs every registered step in dependency order over the request's
// input. The returned response is never nil. An empty dataset is a
// successful operation with NoData set.
func (m *Manager) Execute(ctx context.Context, req OperationRequest) (*OperationResponse, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	ctx = infrastructure.EnsureTraceID(ctx)

	state := NewOperationState(req.ID, req)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := m.storeOperation(state, cancel); err != nil {
		state.Fail(err)
		return m.createResponse(state), err
	}
	defer m.removeOperation(req.ID)

	ctx, span := m.tracer.TraceOperation(ctx, req.ID, req)

	steps, err := m.registry.GetDependencyOrder()
	if err != nil {
		err = NewFatalError("failed to order steps", err)
		m.logOperationError(ctx, req.ID, err)
		state.Fail(err)
		resp := m.createResponse(state)
		m.tracer.RecordOperation(ctx, span, resp, err)
		return resp, err
	}

	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}
	m.broadcaster.CreateOperation(req.ID, steps)

	m.logOperationStart(ctx, req.ID, req, len(steps))
	state.Start()
	m.broadcaster.StartOperation(req.ID)

	err = m.executeSequential(ctx, state, steps)

	switch {
	case err == nil:
		state.Complete()
		msg := "Operation completed successfully"
		if state.Data.Result.Empty() {
			msg = "Operation completed: no data survived validation"
		}
		m.broadcaster.CompleteOperation(req.ID, msg)
	case GetErrorType(err) == ErrorTypeCancellation:
		state.Cancel()
		state.Error = err
		m.broadcaster.CancelOperation(req.ID)
	default:
		state.Fail(err)
		m.broadcaster.FailOperation(req.ID, err)
	}

	resp := m.createResponse(state)
	if err != nil {
		m.logOperationError(ctx, req.ID, err)
	} else {
		m.logOperationComplete(ctx, resp)
	}
	m.tracer.RecordOperation(ctx, span, resp, err)

	return resp, err
}

// executeSequential executes steps one by one. After a failure the remaining
// steps are skipped.
func (m *Manager) executeSequential(ctx context.Context, state *OperationState, steps []Step) error {
	for i, step := range steps {
		if ctx.Err() != nil {
			m.skipRemaining(state, steps[i:], "operation cancelled")
			return NewCancellationError(step.ID())
		}

		if err := m.executeStage(ctx, state, step); err != nil {
			m.logStageError(ctx, state.ID, step.ID(), err)
			m.skipRemaining(state, steps[i+1:], fmt.Sprintf("step %s failed", step.ID()))
			return err
		}
	}
	return nil
}

// executeStage executes a single Step with timeout and retry logic
func (m *Manager) executeStage(ctx context.Context, state *OperationState, step Step) error {
	stepState := state.GetStage(step.ID())
	if stepState == nil {
		return NewFatalError("step state not found", fmt.Errorf("step %s", step.ID()))
	}

	if err := m.checkDependencies(state, step); err != nil {
		stepState.Skip(err.Error())
		m.broadcaster.SkipStep(state.ID, step.ID(), err.Error())
		return err
	}

	if err := step.Validate(state); err != nil {
		verr := NewValidationError(step.ID(), err.Error())
		stepState.Fail(verr)
		m.broadcaster.FailStep(state.ID, step.ID(), verr)
		return verr
	}

	timeout := m.config.GetStageTimeout(step.ID())
	retry := m.config.RetryConfig
	attempts := retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		stepState.Start()
		m.broadcaster.StartStep(state.ID, step.ID())
		m.logStageStart(ctx, state.ID, step.ID(), attempt)

		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		stageCtx, span := m.tracer.TraceStage(stageCtx, state.ID, step.ID())
		start := time.Now()
		err := step.Execute(stageCtx, state)
		duration := time.Since(start)

		switch {
		case err == nil:
		case ctx.Err() != nil:
			err = NewCancellationError(step.ID())
		case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
			err = NewTimeoutError(step.ID(), timeout.String())
		default:
			err = WrapError(err, step.ID(), "step execution failed")
		}
		m.tracer.RecordStage(stageCtx, span, step.ID(), duration, err)
		cancel()

		if err == nil {
			m.logStageComplete(ctx, state.ID, step.ID(), duration)
			stepState.Complete()
			m.broadcaster.CompleteStep(state.ID, step.ID(), "Step completed", stepState.clone().Metadata)
			return nil
		}

		lastErr = err
		if !IsRetryable(err) || attempt >= attempts {
			break
		}

		delay := calculateRetryDelay(attempt, retry)
		m.logger.WarnContext(ctx, "stage_retry",
			slog.String("operation_id", state.ID),
			slog.String("step", step.ID()),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = NewCancellationError(step.ID())
			stepState.Fail(lastErr)
			m.broadcaster.FailStep(state.ID, step.ID(), lastErr)
			return lastErr
		}
	}

	stepState.Fail(lastErr)
	m.broadcaster.FailStep(state.ID, step.ID(), lastErr)
	return lastErr
}

func (m *Manager) skipRemaining(state *OperationState, steps []Step, reason string) {
	for _, step := range steps {
		stepState := state.GetStage(step.ID())
		if stepState != nil && stepState.GetStatus() == StepStatusPending {
			stepState.Skip(reason)
			m.broadcaster.SkipStep(state.ID, step.ID(), reason)
		}
	}
}

// checkDependencies verifies that all dependencies are satisfied
func (m *Manager) checkDependencies(state *OperationState, step Step) error {
	for _, dep := range step.GetDependencies() {
		depState := state.GetStage(dep)
		if depState == nil {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not found", dep))
		}
		if status := depState.GetStatus(); status != StepStatusCompleted {
			return NewDependencyError(step.ID(), dep, fmt.Sprintf("dependency %s not completed (status: %s)", dep, status))
		}
	}
	return nil
}

// calculateRetryDelay returns an exponential backoff capped at MaxDelay
func calculateRetryDelay(attempt int, config RetryConfig) time.Duration {
	delay := config.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * config.Multiplier)
	}
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	return delay
}

// createResponse creates an operation response from state
func (m *Manager) createResponse(state *OperationState) *OperationResponse {
	snapshot := state.Clone()
	resp := &OperationResponse{
		ID:       snapshot.ID,
		Status:   snapshot.Status,
		Duration: snapshot.Duration(),
		Steps:    snapshot.Steps,
	}
	if snapshot.Error != nil {
		resp.Error = snapshot.Error.Error()
	}

	if result := snapshot.Data.Result; result != nil {
		resp.NoData = result.Empty()
		resp.Drops = result.Drops
		resp.Samples = len(result.Samples)
		resp.FeatureRows = result.FeatureRowCount()
		resp.Stats = result.Stats
	}
	return resp
}

// GetOperation retrieves the state of a running operation
func (m *Manager) GetOperation(id string) (*OperationState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	op, exists := m.operations[id]
	if !exists {
		return nil, ErrOperationNotFound
	}
	return op.state.Clone(), nil
}

// ListOperations returns all running operations
func (m *Manager) ListOperations() []*OperationState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*OperationState, 0, len(m.operations))
	for _, op := range m.operations {
		out = append(out, op.state.Clone())
	}
	return out
}

// CancelOperation cancels a running operation. The operation stops at the
// next step boundary or when its current step observes the context.
func (m *Manager) CancelOperation(id string) error {
	m.mu.RLock()
	op, exists := m.operations[id]
	m.mu.RUnlock()

	if !exists {
		return ErrOperationNotRunning
	}
	op.cancel()
	return nil
}

func (m *Manager) storeOperation(state *OperationState, cancel context.CancelFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.operations[state.ID]; exists {
		return &OperationError{
			Type:    ErrorTypeInvalidState,
			Message: fmt.Sprintf("operation %s is already running", state.ID),
		}
	}
	m.operations[state.ID] = &runningOperation{state: state, cancel: cancel}
	return nil
}

func (m *Manager) removeOperation(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.operations, id)
}

// Close stops the status broadcaster
func (m *Manager) Close() {
	m.broadcaster.Stop()
}
