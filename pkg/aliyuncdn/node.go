// Package aliyuncdn implements the Aliyun CDN workflow node.
//
// The node exposes one operation, refreshObjectCaches, which forwards an
// object cache refresh to the Alibaba Cloud CDN API and returns the vendor
// response body as its only output record. Transport, signing, retries and
// timeouts are left to the vendor SDK.
package aliyuncdn

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// NodeTypeName is the registered node type name.
const NodeTypeName = "aliyunCdn"

// Node is the Aliyun CDN node. It holds no per-invocation state and is safe
// for concurrent use.
type Node struct {
	newClient aliyun.ClientFactory
	endpoint  string
}

// Option configures a Node.
type Option func(*Node)

// WithClientFactory overrides how CDN clients are constructed.
func WithClientFactory(f aliyun.ClientFactory) Option {
	return func(n *Node) { n.newClient = f }
}

// WithEndpoint overrides the CDN API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(n *Node) { n.endpoint = endpoint }
}

// New creates the node. By default it dispatches through the Alibaba Cloud
// SDK against aliyun.DefaultEndpoint.
func New(opts ...Option) *Node {
	n := &Node{
		newClient: aliyun.NewClient,
		endpoint:  aliyun.DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

var _ workflow.NodeType = (*Node)(nil)

// Execute implements workflow.NodeType.
//
// Parameters are read for item 0; the host invokes the node once per item.
// The result always has exactly one output port. An operation value outside
// the supported set yields an empty port and no vendor call.
func (n *Node) Execute(ctx context.Context, fn workflow.ExecuteFunctions) ([][]workflow.ExecutionData, error) {
	returnData := []workflow.ExecutionData{}

	value, err := workflow.StringParameter(fn, "operation", 0, OperationRefreshObjectCaches.String())
	if err != nil {
		return nil, err
	}

	creds, err := fn.GetCredentials(ctx, aliyun.CredentialType)
	if err != nil {
		return nil, err
	}

	cfg := aliyun.Config{
		AccessKeyID:     creds.String(aliyun.FieldAccessKeyID),
		AccessKeySecret: creds.String(aliyun.FieldAccessKeySecret),
		Endpoint:        n.endpoint,
	}

	op, ok := ParseOperation(value)
	if !ok {
		fn.Logger().Warn("Unsupported operation, no request sent",
			zap.String("node", fn.GetNode().Name),
			zap.String("operation", value))
		return [][]workflow.ExecutionData{returnData}, nil
	}

	var records []workflow.ExecutionData
	switch op {
	case OperationRefreshObjectCaches:
		records, err = n.refreshObjectCaches(fn, cfg)
	}
	if err != nil {
		return nil, operationError(fn.GetNode(), err)
	}

	returnData = append(returnData, records...)
	return [][]workflow.ExecutionData{returnData}, nil
}
