package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alibabacloud-go/tea/tea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
	"github.com/3leaps/nimbuscdn/pkg/aliyuncdn"
	"github.com/3leaps/nimbuscdn/pkg/host"
	"github.com/3leaps/nimbuscdn/pkg/output"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

func TestNodeHandlerDescribe(t *testing.T) {
	h := NewNodeHandler(aliyuncdn.New(), nil, host.DefaultConfig(), nil)
	assert.Equal(t, "aliyunCdn", h.Type())

	rec := httptest.NewRecorder()
	h.Describe(rec, httptest.NewRequest(http.MethodGet, "/v1/nodes/aliyunCdn", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "aliyunCdn", body["name"])
}

func TestExecuteError(t *testing.T) {
	node := workflow.Node{Name: "Aliyun CDN"}
	sdkErr := &tea.SDKError{
		Code:    tea.String("Throttling.User"),
		Message: tea.String("Request was denied due to user flow control."),
	}

	tests := []struct {
		name       string
		res        host.Result
		wantStatus int
		wantCode   string
	}{
		{
			name:       "vendor",
			res:        host.Result{Err: workflow.NewOperationError(node, "Request was denied due to user flow control.", sdkErr), Code: output.ErrCodeThrottled},
			wantStatus: http.StatusBadGateway,
			wantCode:   apperrors.CodeExternalService,
		},
		{
			name:       "credentials",
			res:        host.Result{Err: errors.New("no credentials"), Code: output.ErrCodeInvalidCredentials},
			wantStatus: http.StatusUnauthorized,
			wantCode:   apperrors.CodeUnauthorized,
		},
		{
			name:       "parameter",
			res:        host.Result{Err: errors.New("objectType: bad"), Code: output.ErrCodeInvalidParameter},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   apperrors.CodeValidation,
		},
		{
			name:       "canceled",
			res:        host.Result{Err: context.Canceled, Code: output.ErrCodeCanceled},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   apperrors.CodeServiceUnavailable,
		},
		{
			name:       "internal",
			res:        host.Result{Err: errors.New("boom"), Code: output.ErrCodeInternal},
			wantStatus: http.StatusInternalServerError,
			wantCode:   apperrors.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.res.ItemIndex = 3
			err := executeError(tt.res)
			assert.Equal(t, tt.wantStatus, err.Status)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, 3, err.Details["item_index"])
			assert.Equal(t, tt.res.Code, err.Details["code"])
		})
	}
}

func TestExecuteErrorVendorMessage(t *testing.T) {
	sdkErr := &tea.SDKError{
		Code:    tea.String("InvalidObjectPath.Malformed"),
		Message: tea.String("The specified ObjectPath is invalid."),
	}
	err := executeError(host.Result{
		Err:  workflow.NewOperationError(workflow.Node{Name: "n"}, "The specified ObjectPath is invalid.", sdkErr),
		Code: output.ErrCodeInvalidParameter,
	})

	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.Equal(t, "The specified ObjectPath is invalid.", err.Message)
	assert.Equal(t, "InvalidObjectPath.Malformed", err.Details["vendor_code"])
}
