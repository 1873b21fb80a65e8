package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
	"github.com/3leaps/nimbuscdn/internal/observability"
)

func serve(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRecovery(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name:    "string panic",
			handler: func(http.ResponseWriter, *http.Request) { panic("nil client") },
			wantMsg: "panic: nil client",
		},
		{
			name:    "error panic",
			handler: func(http.ResponseWriter, *http.Request) { panic(assert.AnError) },
			wantMsg: "panic: " + assert.AnError.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec *httptest.ResponseRecorder
			require.NotPanics(t, func() {
				rec = serve(Recovery(tt.handler), http.MethodPost, "/v1/nodes/aliyunCdn/execute", nil)
			})

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decodeError(t, rec)
			assert.Equal(t, apperrors.CodeInternal, resp.Error.Code)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
		})
	}
}

func TestRecoveryPassesThrough(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))

	rec := serve(h, http.MethodGet, "/v1/nodes/aliyunCdn", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRecoveryRepanicsOnAbort(t *testing.T) {
	h := Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		serve(h, http.MethodGet, "/", nil)
	})
}

func TestRecoveryCarriesRequestID(t *testing.T) {
	h := RequestID(ErrorHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := serve(h, http.MethodPost, "/v1/nodes/aliyunCdn/execute", map[string]string{RequestIDHeader: "req-7f3a"})

	assert.Equal(t, "req-7f3a", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-7f3a", decodeError(t, rec).Error.RequestID)
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		name          string
		envelope      *errors.ErrorEnvelope
		status        int
		wantCode      string
		wantMsg       string
		wantRequestID string
	}{
		{
			name:     "vendor",
			envelope: errors.NewErrorEnvelope(apperrors.CodeExternalService, "The domain does not exist."),
			status:   http.StatusBadGateway,
			wantCode: apperrors.CodeExternalService,
			wantMsg:  "The domain does not exist.",
		},
		{
			name:     "credentials",
			envelope: errors.NewErrorEnvelope(apperrors.CodeUnauthorized, "aliyunApi credentials not found"),
			status:   http.StatusUnauthorized,
			wantCode: apperrors.CodeUnauthorized,
			wantMsg:  "aliyunApi credentials not found",
		},
		{
			name: "with correlation id",
			envelope: errors.NewErrorEnvelope(apperrors.CodeNotFound, "unknown node type").
				WithCorrelationID("corr-123"),
			status:        http.StatusNotFound,
			wantCode:      apperrors.CodeNotFound,
			wantMsg:       "unknown node type",
			wantRequestID: "corr-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeErrorResponse(rec, tt.envelope, tt.status)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMsg, resp.Error.Message)
			assert.Equal(t, tt.wantRequestID, resp.Error.RequestID)
		})
	}
}

func TestWriteErrorResponse_WithContext(t *testing.T) {
	envelope := errors.NewErrorEnvelope(apperrors.CodeValidation, "invalid input")
	envelope, err := envelope.WithContext(map[string]interface{}{
		"field": "objectPath",
		"value": "",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	writeErrorResponse(rec, envelope, http.StatusUnprocessableEntity)

	resp := decodeError(t, rec)
	require.NotNil(t, resp.Error.Details)
	assert.Equal(t, "objectPath", resp.Error.Details["field"])
	assert.Equal(t, "", resp.Error.Details["value"])
}

func TestRequestID_Generated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = apperrors.RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestMetrics_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/nodes/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(observability.HTTPRequests.WithLabelValues("GET", "/nodes/{name}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/nodes/aliyunCdn", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	after := testutil.ToFloat64(observability.HTTPRequests.WithLabelValues("GET", "/nodes/{name}", "418"))
	assert.Equal(t, before+1, after)
}

func TestLogger_PassesThrough(t *testing.T) {
	handler := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
