package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "", want: zapcore.InfoLevel},
		{in: "debug", want: zapcore.DebugLevel},
		{in: "WARN", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "chatty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitLoggers(t *testing.T) {
	InitCLILogger("test", true)
	assert.True(t, CLILogger.Core().Enabled(zapcore.DebugLevel))

	InitCLILogger("test", false)
	assert.False(t, CLILogger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, CLILogger.Core().Enabled(zapcore.InfoLevel))

	require.NoError(t, InitServerLogger("test", "warn"))
	assert.False(t, CLILogger.Core().Enabled(zapcore.InfoLevel))

	assert.Error(t, InitServerLogger("test", "bogus"))
}

func TestRecordNodeExecution(t *testing.T) {
	before := testutil.ToFloat64(nodeExecutions.WithLabelValues("testNode", "op", StatusSuccess))
	beforeErr := testutil.ToFloat64(nodeExecutions.WithLabelValues("testNode", "op", StatusError))
	beforeCode := testutil.ToFloat64(nodeErrors.WithLabelValues("testNode", "THROTTLED"))

	RecordNodeExecution("testNode", "op", 10*time.Millisecond, "")
	RecordNodeExecution("testNode", "op", 20*time.Millisecond, "THROTTLED")

	assert.Equal(t, before+1, testutil.ToFloat64(nodeExecutions.WithLabelValues("testNode", "op", StatusSuccess)))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(nodeExecutions.WithLabelValues("testNode", "op", StatusError)))
	assert.Equal(t, beforeCode+1, testutil.ToFloat64(nodeErrors.WithLabelValues("testNode", "THROTTLED")))
}

func TestMetricsHandler(t *testing.T) {
	RecordHTTPRequest("GET", "/health", "200")

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nimbuscdn_http_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
