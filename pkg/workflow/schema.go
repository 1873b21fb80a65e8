package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/schema"
)

// expressionSchema matches any expression string. Expressions are only
// resolved at execution time, so they bypass static type checks.
var expressionSchema = map[string]any{
	"type":    "string",
	"pattern": "^=",
}

// ParameterSchema derives a JSON Schema (draft 2020-12) describing valid
// raw parameters for the node.
func (d NodeTypeDescription) ParameterSchema() map[string]any {
	props, required := propertiesSchema(d.Properties)
	out := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func propertiesSchema(properties []NodeProperty) (map[string]any, []string) {
	props := make(map[string]any, len(properties))
	var required []string
	for _, p := range properties {
		props[p.Name] = propertySchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return props, required
}

func propertySchema(p NodeProperty) map[string]any {
	var s map[string]any
	switch p.Type {
	case PropertyString:
		s = map[string]any{"type": "string"}
		if p.Required {
			s["minLength"] = 1
		}
	case PropertyNumber:
		s = map[string]any{"type": "number"}
		if p.TypeOptions != nil && p.TypeOptions.NumberPrecision != nil && *p.TypeOptions.NumberPrecision == 0 {
			s["type"] = "integer"
		}
	case PropertyBoolean:
		s = map[string]any{"type": "boolean"}
	case PropertyOptions:
		values := make([]any, 0, len(p.Options))
		for _, o := range p.Options {
			values = append(values, o.Value)
		}
		s = map[string]any{"enum": values}
		if p.NoDataExpression {
			// Selectors such as "operation" stay open: the node decides
			// what an unlisted value does.
			s = map[string]any{"type": "string", "examples": values}
		}
	case PropertyCollection:
		props, _ := propertiesSchema(p.Fields)
		s = map[string]any{
			"type":                 "object",
			"properties":           props,
			"additionalProperties": false,
		}
	default:
		s = map[string]any{}
	}

	if p.NoDataExpression || p.Type == PropertyCollection {
		return s
	}
	return map[string]any{"anyOf": []any{s, expressionSchema}}
}

// ParameterValidator validates raw node parameters against a description.
type ParameterValidator struct {
	validator *schema.Validator
}

// NewParameterValidator compiles the parameter schema of d.
func NewParameterValidator(d NodeTypeDescription) (*ParameterValidator, error) {
	raw, err := json.Marshal(d.ParameterSchema())
	if err != nil {
		return nil, fmt.Errorf("marshal parameter schema: %w", err)
	}
	v, err := schema.NewValidator(raw)
	if err != nil {
		return nil, fmt.Errorf("compile parameter schema for %s: %w", d.Name, err)
	}
	return &ParameterValidator{validator: v}, nil
}

// Validate checks params. Values go through JSON first so that YAML-decoded
// integers and typed maps validate like wire input.
func (v *ParameterValidator) Validate(params map[string]any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	diags, err := v.validator.ValidateJSON(raw)
	if err != nil {
		return fmt.Errorf("parameter schema validation: %w", err)
	}

	var lines []string
	for _, d := range diags {
		if d.Severity != schema.SeverityError {
			continue
		}
		loc := d.Pointer
		if loc == "" {
			loc = "/"
		}
		lines = append(lines, loc+": "+d.Message)
	}
	if len(lines) == 0 {
		return nil
	}
	return &ParameterError{Name: "parameters", Err: fmt.Errorf("%s", strings.Join(lines, "; "))}
}
