package operations

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

func (m *Manager) logOperationStart(ctx context.Context, operationID string, req OperationRequest, steps int) {
	m.logger.InfoContext(ctx, "operation_start",
		slog.String("operation_id", operationID),
		slog.String("input", req.InputPath),
		slog.String("sheet", req.Sheet),
		slog.Int("step_count", steps))
}

func (m *Manager) logOperationComplete(ctx context.Context, resp *OperationResponse) {
	m.logger.InfoContext(ctx, "operation_complete",
		slog.String("operation_id", resp.ID),
		slog.String("status", string(resp.Status)),
		slog.Duration("duration", resp.Duration),
		slog.Bool("no_data", resp.NoData),
		slog.String("samples", humanize.Comma(int64(resp.Samples))),
		slog.String("feature_rows", humanize.Comma(int64(resp.FeatureRows))),
		slog.Int("runs", len(resp.Stats)),
		slog.Int("dropped", resp.Drops.Total()))
}

func (m *Manager) logOperationError(ctx context.Context, operationID string, err error) {
	m.logger.ErrorContext(ctx, "operation_error",
		slog.String("operation_id", operationID),
		slog.String("error", err.Error()))
}

func (m *Manager) logStageStart(ctx context.Context, operationID, stageID string, attempt int) {
	m.logger.InfoContext(ctx, "stage_start",
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.Int("attempt", attempt))
}

func (m *Manager) logStageComplete(ctx context.Context, operationID, stageID string, duration time.Duration) {
	m.logger.InfoContext(ctx, "stage_complete",
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.Duration("duration", duration))
}

func (m *Manager) logStageError(ctx context.Context, operationID, stageID string, err error) {
	m.logger.ErrorContext(ctx, "stage_error",
		slog.String("operation_id", operationID),
		slog.String("step", stageID),
		slog.String("error_type", string(GetErrorType(err))),
		slog.String("error", err.Error()))
}
