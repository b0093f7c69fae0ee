package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "robokin/internal/errors"
	"robokin/internal/operations"
)

func newValidation() *ValidationMiddleware {
	return NewValidationMiddleware(discardLogger(), apierrors.NewErrorHandler(discardLogger(), false))
}

func TestValidateStruct_OperationRequest(t *testing.T) {
	tests := []struct {
		name       string
		req        operations.OperationRequest
		wantFields []string
	}{
		{"valid csv", operations.OperationRequest{InputPath: "data/run.csv"}, nil},
		{"valid xlsx upper", operations.OperationRequest{InputPath: "RUN.XLSX", Sheet: "Telemetry"}, nil},
		{"missing path", operations.OperationRequest{}, []string{"input_path"}},
		{"wrong extension", operations.OperationRequest{InputPath: "run.json"}, []string{"input_path"}},
		{"sheet too long", operations.OperationRequest{InputPath: "run.xlsx", Sheet: strings.Repeat("s", 32)}, []string{"sheet"}},
	}

	v := newValidation()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			var apiErr *apierrors.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, apierrors.CodeValidationFailed, apiErr.ErrorCode)

			details, ok := apiErr.Details.(apierrors.ValidationErrors)
			require.True(t, ok)
			fields := make([]string, 0, len(details.Errors))
			for _, fe := range details.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"get skipped", http.MethodGet, "", http.StatusOK},
		{"valid json", http.MethodPost, `{"input_path":"run.csv"}`, http.StatusOK},
		{"invalid json", http.MethodPost, `{"input_path":`, http.StatusBadRequest},
		{"too large", http.MethodPost, `"` + strings.Repeat("x", defaultMaxBodySize) + `"`, http.StatusRequestEntityTooLarge},
	}

	v := newValidation()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := v.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				seen = string(body)
			}))

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, "/api/v1/operations", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.body, seen, "body must be restored for the handler")
			}
		})
	}
}

func TestContentTypeValidator(t *testing.T) {
	h := ContentTypeValidator("application/json")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader("a,b"))
	req.Header.Set("Content-Type", "text/csv")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/operations", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestQueryParamValidator(t *testing.T) {
	v := NewQueryParamValidator(apierrors.NewErrorHandler(discardLogger(), false))

	tests := []struct {
		query  string
		want   int
		wantOK bool
	}{
		{"", 50, true},
		{"limit=10", 10, true},
		{"limit=0", 0, false},
		{"limit=12abc", 0, false},
		{"limit=1001", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/api/v1/operations?"+tt.query, nil), "limit", 1, 1000, 50)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			}
		})
	}

	rec := httptest.NewRecorder()
	status, ok := v.ValidateEnum(rec, httptest.NewRequest(http.MethodGet, "/?status=done", nil), "status", []string{"pending", "running"}, "")
	assert.False(t, ok)
	assert.Empty(t, status)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
