// Package workflow defines the contract between the workflow host and the
// nodes it executes.
//
// A node publishes a declarative NodeTypeDescription (rendered by the host as
// a parameter form) and an Execute method. The host resolves parameters and
// credentials and calls Execute once per workflow item, collecting the
// returned output ports.
package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NodeType is implemented by every executable node.
type NodeType interface {
	// Description returns the declarative node schema.
	Description() NodeTypeDescription

	// Execute runs the node. The result holds one ordered sequence of
	// records per output port.
	Execute(ctx context.Context, fn ExecuteFunctions) ([][]ExecutionData, error)
}

// ExecuteFunctions is the host surface available to a node during Execute.
//
// Implementations are created per invocation and must not be shared between
// concurrent executions.
type ExecuteFunctions interface {
	// GetNodeParameter returns the resolved value of a node parameter for the
	// given item. If the parameter is absent, fallback is returned; a nil
	// fallback turns absence into an error.
	GetNodeParameter(name string, itemIndex int, fallback any) (any, error)

	// GetCredentials resolves the named credential type.
	GetCredentials(ctx context.Context, credentialType string) (Credentials, error)

	// GetNode identifies the node being executed.
	GetNode() Node

	// GetInputData returns the items on the main input.
	GetInputData() []ExecutionData

	// Logger returns a logger scoped to this execution.
	Logger() *zap.Logger
}

// Node identifies a node instance inside a workflow.
type Node struct {
	// Name is the instance name shown in the workflow (e.g., "Aliyun CDN").
	Name string `json:"name"`

	// Type is the node type name (e.g., "aliyunCdn").
	Type string `json:"type"`

	// TypeVersion is the node type version.
	TypeVersion int `json:"typeVersion"`
}

// ExecutionData is a single record flowing between nodes.
type ExecutionData struct {
	JSON map[string]any `json:"json"`
}

// Credentials holds resolved credential fields.
//
// Values are owned by the host and read-only to nodes.
type Credentials map[string]any

// String returns the credential field as a string, or "" when absent.
func (c Credentials) String(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// CredentialResolver resolves credentials by type name.
//
// The credentials package provides store-backed implementations.
type CredentialResolver interface {
	Get(ctx context.Context, credentialType string) (Credentials, error)
}
