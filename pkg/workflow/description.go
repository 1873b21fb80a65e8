package workflow

import "encoding/json"

// PropertyType is the form control type of a node property.
type PropertyType string

const (
	PropertyString     PropertyType = "string"
	PropertyNumber     PropertyType = "number"
	PropertyBoolean    PropertyType = "boolean"
	PropertyOptions    PropertyType = "options"
	PropertyCollection PropertyType = "collection"
)

// ConnectionType is the kind of a node input or output.
type ConnectionType string

// ConnectionMain is the primary data connection.
const ConnectionMain ConnectionType = "main"

// NodeTypeDescription is the declarative schema of a node type.
type NodeTypeDescription struct {
	DisplayName string                  `json:"displayName"`
	Name        string                  `json:"name"`
	Icon        string                  `json:"icon,omitempty"`
	Group       []string                `json:"group"`
	Version     int                     `json:"version"`
	Subtitle    string                  `json:"subtitle,omitempty"`
	Description string                  `json:"description"`
	Defaults    NodeDefaults            `json:"defaults"`
	Inputs      []Connection            `json:"inputs"`
	Outputs     []Connection            `json:"outputs"`
	Credentials []CredentialRequirement `json:"credentials,omitempty"`
	Properties  []NodeProperty          `json:"properties"`
}

// NodeDefaults holds default instance settings.
type NodeDefaults struct {
	Name string `json:"name"`
}

// Connection describes one input or output port.
type Connection struct {
	Type     ConnectionType `json:"type"`
	Required bool           `json:"required"`
}

// CredentialRequirement names a credential type the node needs.
type CredentialRequirement struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// TypeOptions holds rendering hints for a property.
type TypeOptions struct {
	Rows     int  `json:"rows,omitempty"`
	Password bool `json:"password,omitempty"`

	// NumberPrecision of 0 restricts a number property to integers.
	NumberPrecision *int `json:"numberPrecision,omitempty"`
}

// PropertyOption is a single choice of an options property.
type PropertyOption struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Action      string `json:"action,omitempty"`
}

// NodeProperty is one parameter of a node.
//
// Options lists the choices of an options property; Fields lists the
// optional members of a collection property. Both are serialized under
// "options", matching the host's schema format.
type NodeProperty struct {
	DisplayName      string           `json:"displayName"`
	Name             string           `json:"name"`
	Type             PropertyType     `json:"type"`
	TypeOptions      *TypeOptions     `json:"typeOptions,omitempty"`
	NoDataExpression bool             `json:"noDataExpression,omitempty"`
	Default          any              `json:"default"`
	Required         bool             `json:"required,omitempty"`
	Placeholder      string           `json:"placeholder,omitempty"`
	Description      string           `json:"description,omitempty"`
	Options          []PropertyOption `json:"-"`
	Fields           []NodeProperty   `json:"-"`
}

// MarshalJSON emits Options or Fields under the "options" key.
func (p NodeProperty) MarshalJSON() ([]byte, error) {
	type alias NodeProperty
	out := struct {
		alias
		Options any `json:"options,omitempty"`
	}{alias: alias(p)}

	switch {
	case len(p.Fields) > 0:
		out.Options = p.Fields
	case len(p.Options) > 0:
		out.Options = p.Options
	}
	return json.Marshal(out)
}

// Property returns the top-level property with the given name.
func (d NodeTypeDescription) Property(name string) (NodeProperty, bool) {
	for _, p := range d.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return NodeProperty{}, false
}

// ApplyDefaults fills absent top-level parameters with their declared
// defaults and returns the merged copy.
//
// Collection members are never defaulted: a field missing from a collection
// stays absent so nodes can tell "unset" from "set to the default value".
func (d NodeTypeDescription) ApplyDefaults(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(d.Properties))
	for k, v := range params {
		out[k] = v
	}
	for _, p := range d.Properties {
		if _, ok := out[p.Name]; ok {
			continue
		}
		if p.Type == PropertyCollection {
			out[p.Name] = map[string]any{}
			continue
		}
		if p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}
