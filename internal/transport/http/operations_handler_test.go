package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "robokin/internal/errors"
	custommw "robokin/internal/middleware"
	"robokin/internal/operations"
	"robokin/internal/services"
)

// gateStep blocks until released or cancelled
type gateStep struct {
	operations.BaseStage
	release chan struct{}
}

func (s *gateStep) Execute(ctx context.Context, _ *operations.OperationState) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type testServer struct {
	router  chi.Router
	service *services.OperationService
	gate    *gateStep
}

func newTestServer(t *testing.T, runs services.RunStatsReader) *testServer {
	t.Helper()

	gate := &gateStep{
		BaseStage: operations.NewBaseStage("gate", "Gate", nil),
		release:   make(chan struct{}),
	}
	m := operations.NewManager(nil, nil, nil)
	t.Cleanup(m.Close)
	require.NoError(t, m.RegisterStage(gate))

	q := operations.NewJobQueue(1, nil, m, nil)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = q.Stop(time.Second)
	})

	svc := services.NewOperationService(q, m, runs, nil)
	errHandler := apierrors.NewErrorHandler(nil, false)
	validator := custommw.NewValidationMiddleware(nil, errHandler)

	r := chi.NewRouter()
	r.Mount("/api/v1/operations", NewOperationsHandler(svc, validator, errHandler, nil).Routes())
	r.Get("/api/v1/runs", NewRunsHandler(svc, errHandler).ListRuns)

	return &testServer{router: r, service: svc, gate: gate}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestOperationsHandler_StartOperation(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
	}{
		{"csv accepted", `{"input_path":"telemetry.csv"}`, "application/json", http.StatusAccepted},
		{"xlsx with sheet", `{"input_path":"telemetry.xlsx","sheet":"Run1"}`, "application/json", http.StatusAccepted},
		{"missing input", `{}`, "application/json", http.StatusBadRequest},
		{"unsupported extension", `{"input_path":"telemetry.parquet"}`, "application/json", http.StatusBadRequest},
		{"sheet name too long", `{"input_path":"a.xlsx","sheet":"` + strings.Repeat("s", 32) + `"}`, "application/json", http.StatusBadRequest},
		{"invalid json", `{"input_path":`, "application/json", http.StatusBadRequest},
		{"wrong content type", `{"input_path":"telemetry.csv"}`, "text/plain", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			defer close(srv.gate.release)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusAccepted {
				body := decodeBody(t, rec)
				id, _ := body["operation_id"].(string)
				assert.NotEmpty(t, id)
				assert.Equal(t, "pending", body["status"])
				assert.Equal(t, "/api/v1/operations/"+id, rec.Header().Get("Location"))
			}
		})
	}
}

func TestOperationsHandler_Lifecycle(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := srv.do(http.MethodPost, "/api/v1/operations", `{"id":"op-1","input_path":"telemetry.csv"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		rec := srv.do(http.MethodGet, "/api/v1/operations/op-1", "")
		if rec.Code != http.StatusOK {
			return false
		}
		var view struct {
			Job struct {
				Status string `json:"status"`
			} `json:"job"`
		}
		return json.Unmarshal(rec.Body.Bytes(), &view) == nil && view.Job.Status == "running"
	}, 2*time.Second, 10*time.Millisecond)

	rec = srv.do(http.MethodPost, "/api/v1/operations", `{"id":"op-1","input_path":"telemetry.csv"}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate id")

	rec = srv.do(http.MethodGet, "/api/v1/operations?status=running", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	rec = srv.do(http.MethodDelete, "/api/v1/operations/op-1", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		job, err := srv.service.GetOperation(context.Background(), "op-1")
		return err == nil && job.Job.Status == operations.JobStatusCancelled
	}, 2*time.Second, 10*time.Millisecond)

	rec = srv.do(http.MethodDelete, "/api/v1/operations/op-1", "")
	assert.Equal(t, http.StatusConflict, rec.Code, "finished job cannot be cancelled")
	body := decodeBody(t, rec)
	assert.Equal(t, apierrors.TypeOperationState, body["type"])
	assert.Equal(t, string(operations.ErrorTypeInvalidState), body["error_type"])
}

func TestOperationsHandler_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := srv.do(method, "/api/v1/operations/missing", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
		assert.Equal(t, apierrors.TypeOperationNotFound, decodeBody(t, rec)["type"], method)
	}
}

func TestOperationsHandler_ListOperationsQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
	}{
		{"defaults", "", http.StatusOK},
		{"status filter", "?status=completed", http.StatusOK},
		{"limit", "?limit=10", http.StatusOK},
		{"unknown status", "?status=exploded", http.StatusBadRequest},
		{"limit zero", "?limit=0", http.StatusBadRequest},
		{"limit too large", "?limit=501", http.StatusBadRequest},
		{"limit not a number", "?limit=ten", http.StatusBadRequest},
	}

	srv := newTestServer(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(http.MethodGet, "/api/v1/operations"+tt.query, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.EqualValues(t, 0, decodeBody(t, rec)["count"])
			}
		})
	}
}
