package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "robokin/internal/errors"
	"robokin/internal/infrastructure"
	custommw "robokin/internal/middleware"
	"robokin/internal/operations"
	"robokin/internal/services"
)

const maxListLimit = 500

var jobStatuses = []string{
	string(operations.JobStatusPending),
	string(operations.JobStatusRunning),
	string(operations.JobStatusCompleted),
	string(operations.JobStatusFailed),
	string(operations.JobStatusCancelled),
}

// OperationsHandler handles operation-related HTTP requests
type OperationsHandler struct {
	service   *services.OperationService
	validator *custommw.ValidationMiddleware
	query     *custommw.QueryParamValidator
	errors    *apierrors.ErrorHandler
	logger    *slog.Logger
}

// NewOperationsHandler creates a new operations handler
func NewOperationsHandler(service *services.OperationService, validator *custommw.ValidationMiddleware, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *OperationsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationsHandler{
		service:   service,
		validator: validator,
		query:     custommw.NewQueryParamValidator(errorHandler),
		errors:    errorHandler,
		logger:    logger.With(slog.String("handler", "operations")),
	}
}

// Routes returns the operations router
func (h *OperationsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.validator.ValidateRequest, custommw.ContentTypeValidator("application/json")).Post("/", h.StartOperation)
	r.Get("/", h.ListOperations)
	r.Get("/{id}", h.GetOperation)
	r.Delete("/{id}", h.CancelOperation)
	return r
}

// StartOperation handles POST /api/v1/operations
func (h *OperationsHandler) StartOperation(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(infrastructure.MeterName).Start(r.Context(), "operations_handler.start_operation",
		trace.WithAttributes(attribute.String("request_id", middleware.GetReqID(r.Context()))))
	defer span.End()
	r = r.WithContext(ctx)

	var req operations.OperationRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	job, err := h.service.StartOperation(ctx, req)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		h.errors.HandleError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("operation.id", job.ID))

	h.logger.InfoContext(ctx, "operation queued",
		slog.String("operation_id", job.ID),
		slog.String("input", req.InputPath))

	w.Header().Set("Location", r.URL.Path+"/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]interface{}{
		"operation_id": job.ID,
		"status":       job.Status,
		"created_at":   job.CreatedAt,
		"trace_id":     job.TraceID,
	})
}

// ListOperations handles GET /api/v1/operations
func (h *OperationsHandler) ListOperations(w http.ResponseWriter, r *http.Request) {
	status, ok := h.query.ValidateEnum(w, r, "status", jobStatuses, "")
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxListLimit, 50)
	if !ok {
		return
	}

	jobs, err := h.service.ListOperations(r.Context(), operations.JobFilter{
		Status: operations.JobStatus(status),
		Limit:  limit,
	})
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"operations": jobs,
		"count":      len(jobs),
	})
}

// GetOperation handles GET /api/v1/operations/{id}
func (h *OperationsHandler) GetOperation(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetOperation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// CancelOperation handles DELETE /api/v1/operations/{id}
func (h *OperationsHandler) CancelOperation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.CancelOperation(r.Context(), id); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, map[string]string{
		"id":      id,
		"message": "cancellation requested",
	})
}
