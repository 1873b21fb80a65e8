package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
	"github.com/3leaps/nimbuscdn/pkg/credentials"
	"github.com/3leaps/nimbuscdn/pkg/host"
	"github.com/3leaps/nimbuscdn/pkg/manifest"
	"github.com/3leaps/nimbuscdn/pkg/output"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// maxExecuteBody caps the execute request body.
const maxExecuteBody = 4 << 20

// ExecuteRequest is the body of POST /v1/nodes/{type}/execute.
type ExecuteRequest struct {
	// Node names the node instance. Optional.
	Node manifest.NodeConfig `json:"node"`

	// Items are executed in order, one node invocation each.
	Items []manifest.Item `json:"items"`

	// Credentials are request-scoped credentials keyed by credential type.
	// They take precedence over the server's own.
	Credentials map[string]workflow.Credentials `json:"credentials,omitempty"`
}

// ExecuteResponse is the body of a successful execute call. Data holds the
// node's output ports with every item's output appended in item order.
type ExecuteResponse struct {
	Data          [][]workflow.ExecutionData `json:"data"`
	InvocationIDs []string                   `json:"invocation_ids"`
}

// NodeHandler serves the description and execution endpoints of one node
// type.
type NodeHandler struct {
	node   workflow.NodeType
	creds  workflow.CredentialResolver
	config host.Config
	logger *zap.Logger
}

// NewNodeHandler creates a handler for node. creds resolves credentials not
// supplied in the request.
func NewNodeHandler(node workflow.NodeType, creds workflow.CredentialResolver, cfg host.Config, logger *zap.Logger) *NodeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if creds == nil {
		creds = credentials.Chain{}
	}
	return &NodeHandler{node: node, creds: creds, config: cfg, logger: logger}
}

// Type returns the node type name served by h.
func (h *NodeHandler) Type() string {
	return h.node.Description().Name
}

// Describe serves the node type description.
func (h *NodeHandler) Describe(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, h.node.Description())
}

// Execute runs the node once per request item and stops at the first failed
// item.
func (h *NodeHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxExecuteBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondWithError(w, r, apperrors.BadRequest("invalid request body: "+err.Error()))
		return
	}

	m := manifest.Manifest{Version: manifest.Version, Node: manifest.NodeConfig{Name: req.Node.Name}, Items: req.Items}
	if err := manifest.Validate(&m); err != nil {
		respondWithError(w, r, apperrors.Validation(err.Error(), err))
		return
	}
	m.ApplyDefaults()

	resolver := h.creds
	if len(req.Credentials) > 0 {
		resolver = credentials.Chain{credentials.Static(req.Credentials), h.creds}
	}

	runner, err := host.New(h.node, workflow.Node{Name: m.Node.Name}, resolver, nil, h.config)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInternal(err))
		return
	}
	runner.WithLogger(h.logger.With(zap.String("request_id", apperrors.RequestIDFrom(r.Context()))))

	resp := ExecuteResponse{Data: [][]workflow.ExecutionData{}, InvocationIDs: make([]string, 0, len(m.Items))}
	for i, item := range m.Items {
		res := runner.ExecuteItem(r.Context(), i, item)
		resp.InvocationIDs = append(resp.InvocationIDs, res.InvocationID)
		if res.Err != nil {
			h.logger.Debug("Item failed",
				zap.Int("item_index", i),
				zap.String("code", res.Code),
				zap.Error(res.Err))
			respondWithError(w, r, executeError(res))
			return
		}
		for p, port := range res.Output {
			for len(resp.Data) <= p {
				resp.Data = append(resp.Data, []workflow.ExecutionData{})
			}
			resp.Data[p] = append(resp.Data[p], port...)
		}
	}

	apperrors.WriteJSON(w, http.StatusOK, resp)
}

// executeError maps a failed item onto an HTTP error. Vendor failures are
// 502s carrying the vendor message.
func executeError(res host.Result) *apperrors.AppError {
	vendor := aliyun.ErrorCode(res.Err)

	var appErr *apperrors.AppError
	switch {
	case res.Code == output.ErrCodeCanceled:
		appErr = apperrors.ServiceUnavailable("request canceled")
	case vendor != "" || (workflow.IsOperationError(res.Err) && res.Code != output.ErrCodeInvalidCredentials):
		appErr = apperrors.NewExternalServiceError("aliyun", res.Err)
		if vendor != "" {
			appErr = appErr.WithDetails("vendor_code", vendor)
		}
	case res.Code == output.ErrCodeInvalidCredentials:
		appErr = apperrors.Unauthorized(res.Err.Error(), res.Err)
	case res.Code == output.ErrCodeInvalidParameter:
		appErr = apperrors.Validation(res.Err.Error(), res.Err)
	default:
		appErr = apperrors.WrapInternal(res.Err)
	}

	return appErr.
		WithDetails("code", res.Code).
		WithDetails("item_index", res.ItemIndex).
		WithDetails("invocation_id", res.InvocationID)
}
