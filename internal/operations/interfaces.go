package operations

import (
	"context"

	"robokin/internal/dataprocessing"
	"robokin/internal/ingest"
	"robokin/pkg/contracts/domain"
)

// WebSocketHub interface for sending WebSocket messages
type WebSocketHub interface {
	BroadcastUpdate(eventType, step, status string, metadata interface{})
}

// Sink persists a finished pipeline result
type Sink interface {
	Write(ctx context.Context, result *dataprocessing.Result) error
	Close() error
}

// TableReader loads the raw input table of an operation
type TableReader func(ctx context.Context, path string, opts ingest.Options) (*domain.Table, error)
