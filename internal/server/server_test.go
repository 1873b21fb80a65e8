package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cdn "github.com/alibabacloud-go/cdn-20180510/v5/client"
	"github.com/alibabacloud-go/tea/tea"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
	"github.com/3leaps/nimbuscdn/internal/server/handlers"
	"github.com/3leaps/nimbuscdn/pkg/aliyuncdn"
	"github.com/3leaps/nimbuscdn/pkg/credentials"
	"github.com/3leaps/nimbuscdn/pkg/host"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
)

type fakeClient struct {
	err      error
	requests []*cdn.RefreshObjectCachesRequest
}

func (c *fakeClient) RefreshObjectCachesWithOptions(req *cdn.RefreshObjectCachesRequest, _ *util.RuntimeOptions) (*cdn.RefreshObjectCachesResponse, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	return &cdn.RefreshObjectCachesResponse{
		Body: &cdn.RefreshObjectCachesResponseBody{
			RequestId:     tea.String("req-1"),
			RefreshTaskId: tea.String("task-1"),
		},
	}, nil
}

func newTestServer(c *fakeClient, creds credentials.Store) *Server {
	node := aliyuncdn.New(aliyuncdn.WithClientFactory(func(aliyun.Config) (aliyun.CDNClient, error) {
		return c, nil
	}))
	return New("127.0.0.1", 0, WithNodeHandler(handlers.NewNodeHandler(node, creds, host.DefaultConfig(), nil)))
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
	if body.Error.RequestID == "" {
		t.Fatalf("expected request id in error response")
	}
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port)
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_Handler(t *testing.T) {
	srv := New("127.0.0.1", 8080)
	handler := srv.Handler()
	assert.NotNil(t, handler)
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	// POST to a GET-only endpoint should return 405
	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	err := json.NewDecoder(rec.Body).Decode(&body)
	require.NoError(t, err)

	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	handlers.InitHealthManager("test")

	srv := New("127.0.0.1", 0)

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/health/startup", http.StatusOK},
		{"GET", "/version", http.StatusOK},
		{"GET", "/metrics", http.StatusOK},
		{"GET", "/v1/nodes/aliyunCdn", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

func TestServer_OptionalRoutesDisabled(t *testing.T) {
	srv := New("127.0.0.1", 0, WithMetrics(false), WithHealth(false))

	for _, path := range []string{"/metrics", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestServer_ExecuteEndpoint(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client, credentials.StaticAliyun("LTAI-test", "secret-test"))

	body := `{"items":[{"parameters":{"objectPath":"https://cdn.example.com/a.js"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/nodes/aliyunCdn/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handlers.ExecuteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	require.Len(t, resp.Data[0], 1)
	assert.Equal(t, "task-1", resp.Data[0][0].JSON["RefreshTaskId"])

	require.Len(t, client.requests, 1)
	assert.Equal(t, "https://cdn.example.com/a.js", tea.StringValue(client.requests[0].ObjectPath))
	assert.Equal(t, "File", tea.StringValue(client.requests[0].ObjectType))
}

func TestServer_ExecuteVendorError(t *testing.T) {
	client := &fakeClient{err: &tea.SDKError{
		Code:       tea.String("InvalidDomain.NotFound"),
		Message:    tea.String("The domain provided does not belong to you."),
		StatusCode: tea.Int(404),
	}}
	srv := newTestServer(client, credentials.StaticAliyun("LTAI-test", "secret-test"))

	body := `{"items":[{"parameters":{"objectPath":"https://nope.example.com/"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/nodes/aliyunCdn/execute", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperrors.CodeExternalService, resp.Error.Code)
	assert.Equal(t, "The domain provided does not belong to you.", resp.Error.Message)
	assert.Equal(t, "InvalidDomain.NotFound", resp.Error.Details["vendor_code"])
}

func TestServer_ExecuteRequestCredentials(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client, credentials.Chain{})

	body := `{
		"credentials": {"aliyunApi": {"accessKeyId": "LTAI-req", "accessKeySecret": "secret-req"}},
		"items": [{"parameters": {"objectPath": "https://cdn.example.com/"}}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/nodes/aliyunCdn/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestServer_ExecuteUnknownOperation(t *testing.T) {
	factoryCalls := 0
	node := aliyuncdn.New(aliyuncdn.WithClientFactory(func(aliyun.Config) (aliyun.CDNClient, error) {
		factoryCalls++
		return &fakeClient{}, nil
	}))
	srv := New("127.0.0.1", 0, WithNodeHandler(handlers.NewNodeHandler(node,
		credentials.StaticAliyun("LTAI-test", "secret-test"), host.DefaultConfig(), nil)))

	body := `{"items":[{"parameters":{"operation":"describeRefreshTasks","objectPath":"https://cdn.example.com/"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/nodes/aliyunCdn/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp handlers.ExecuteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Empty(t, resp.Data[0])
	assert.Zero(t, factoryCalls)
}

func TestServer_ExecuteMissingCredentials(t *testing.T) {
	client := &fakeClient{}
	srv := newTestServer(client, credentials.Chain{})

	body := `{"items":[{"parameters":{"objectPath":"https://cdn.example.com/"}}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/nodes/aliyunCdn/execute", strings.NewReader(body))
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, client.requests)
}

func TestServer_ExecuteBadRequests(t *testing.T) {
	srv := newTestServer(&fakeClient{}, credentials.StaticAliyun("LTAI-test", "secret-test"))

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"items":`, http.StatusBadRequest},
		{"unknown field", `{"items":[],"extra":1}`, http.StatusBadRequest},
		{"no items", `{"items":[]}`, http.StatusUnprocessableEntity},
		{"item without parameters", `{"items":[{"json":{}}]}`, http.StatusUnprocessableEntity},
		{"bad object type", `{"items":[{"parameters":{"objectPath":"https://a/","objectType":"Folder"}}]}`, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/nodes/aliyunCdn/execute", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
