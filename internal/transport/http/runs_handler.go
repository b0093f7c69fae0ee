package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	apierrors "robokin/internal/errors"
	"robokin/internal/services"
)

// RunsHandler serves the persisted run statistics
type RunsHandler struct {
	service *services.OperationService
	errors  *apierrors.ErrorHandler
}

// NewRunsHandler creates a new runs handler
func NewRunsHandler(service *services.OperationService, errorHandler *apierrors.ErrorHandler) *RunsHandler {
	return &RunsHandler{service: service, errors: errorHandler}
}

// ListRuns handles GET /api/v1/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.ListRuns(r.Context())
	if errors.Is(err, services.ErrRunsUnavailable) {
		err = apierrors.NewWithDetails(http.StatusServiceUnavailable, apierrors.CodeServiceUnavailable,
			"Run statistics require the sqlite sink", err.Error())
	}
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"runs":  stats,
		"count": len(stats),
	})
}
