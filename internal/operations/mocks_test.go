package operations

import (
	"context"
	"sync"

	"robokin/internal/dataprocessing"
)

// mockStage is a configurable Step
type mockStage struct {
	BaseStage
	executeFunc  func(ctx context.Context, state *OperationState) error
	validateFunc func(state *OperationState) error

	mu    sync.Mutex
	calls int
}

func newMockStage(id string, deps ...string) *mockStage {
	return &mockStage{BaseStage: NewBaseStage(id, "Mock "+id, deps)}
}

func (m *mockStage) Execute(ctx context.Context, state *OperationState) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.executeFunc != nil {
		return m.executeFunc(ctx, state)
	}
	return nil
}

func (m *mockStage) Validate(state *OperationState) error {
	if m.validateFunc != nil {
		return m.validateFunc(state)
	}
	return nil
}

func (m *mockStage) executeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type hubMessage struct {
	EventType string
	Step      string
	Status    string
	Metadata  interface{}
}

// mockHub captures broadcast updates
type mockHub struct {
	mu       sync.Mutex
	messages []hubMessage
}

func (h *mockHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, hubMessage{EventType: eventType, Step: step, Status: status, Metadata: metadata})
}

func (h *mockHub) Messages() []hubMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hubMessage(nil), h.messages...)
}

func (h *mockHub) lastStatus() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.messages) == 0 {
		return ""
	}
	return h.messages[len(h.messages)-1].Status
}

// memorySink records every result it is given. The first failures writes
// return err.
type memorySink struct {
	mu       sync.Mutex
	results  []*dataprocessing.Result
	failures int
	err      error
	closed   bool
}

func (s *memorySink) Write(ctx context.Context, result *dataprocessing.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}
