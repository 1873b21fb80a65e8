// Package manifest provides loading and validation of nimbuscdn items manifests.
//
// An items manifest is a batch of workflow items for the aliyunCdn node. Each
// item carries the node parameters for that item and, optionally, the item's
// JSON, which parameter expressions can reference.
//
// Manifests are validated against an embedded JSON Schema before use. The
// schema enforces strict typing and disallows unknown properties.
//
// Example manifest (YAML):
//
//	version: 1
//	node:
//	  name: Purge assets
//	items:
//	  - json:
//	      host: https://cdn.example.com
//	    parameters:
//	      objectPath: "={{ $json.host }}/app.js"
//	      additionalFields:
//	        force: true
//	  - parameters:
//	      objectPath: https://cdn.example.com/img/
//	      objectType: Directory
//
// Files with a .jsonl or .ndjson extension hold one item object per line.
package manifest

import (
	"github.com/3leaps/nimbuscdn/pkg/aliyuncdn"
	"github.com/3leaps/nimbuscdn/pkg/provider"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// Version is the only supported manifest version.
const Version = 1

// DefaultNodeName names the node when the manifest does not.
const DefaultNodeName = "Aliyun CDN"

// Manifest represents a validated items manifest.
type Manifest struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// Version is the manifest schema version. Must be 1.
	Version int `json:"version" yaml:"version"`

	// Node configures the node instance (optional).
	Node NodeConfig `json:"node" yaml:"node,omitempty"`

	// Items are the workflow items, in execution order.
	Items []Item `json:"items" yaml:"items"`
}

// NodeConfig configures the node instance that runs the items.
type NodeConfig struct {
	// Name is the node instance name used in errors and logs.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Endpoint overrides the vendor endpoint host. Optional.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// Item is a single workflow item.
type Item struct {
	// JSON is the item data visible to expressions as $json.
	JSON map[string]any `json:"json,omitempty" yaml:"json,omitempty"`

	// Parameters are the raw node parameters for this item.
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// ApplyDefaults sets default values for optional fields.
//
// Missing operation defaults to refreshObjectCaches and missing objectType
// to File. Values already present, including expressions, are kept.
func (m *Manifest) ApplyDefaults() {
	if m.Node.Name == "" {
		m.Node.Name = DefaultNodeName
	}
	for i := range m.Items {
		item := &m.Items[i]
		if item.JSON == nil {
			item.JSON = map[string]any{}
		}
		if item.Parameters == nil {
			item.Parameters = map[string]any{}
		}
		if _, ok := item.Parameters["operation"]; !ok {
			item.Parameters["operation"] = aliyuncdn.OperationRefreshObjectCaches.String()
		}
		if _, ok := item.Parameters["objectType"]; !ok {
			item.Parameters["objectType"] = provider.ObjectFile.String()
		}
	}
}

// InputData returns the items' JSON in order, as node input.
func (m *Manifest) InputData() []workflow.ExecutionData {
	out := make([]workflow.ExecutionData, len(m.Items))
	for i, item := range m.Items {
		out[i] = workflow.ExecutionData{JSON: item.JSON}
	}
	return out
}
