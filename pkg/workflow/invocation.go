package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Invocation is the host-side ExecuteFunctions for one node execution.
//
// Parameters are node-level; expressions inside them are resolved against
// the item selected by itemIndex.
type Invocation struct {
	node        Node
	parameters  map[string]any
	items       []ExecutionData
	credentials CredentialResolver
	evaluator   *Evaluator
	logger      *zap.Logger

	// literal names parameters that are never evaluated as expressions.
	literal map[string]bool
}

// InvocationOption configures an Invocation.
type InvocationOption func(*Invocation)

// WithItems sets the main input items.
func WithItems(items []ExecutionData) InvocationOption {
	return func(inv *Invocation) { inv.items = items }
}

// WithCredentials sets the credential resolver.
func WithCredentials(r CredentialResolver) InvocationOption {
	return func(inv *Invocation) { inv.credentials = r }
}

// WithEvaluator shares an expression evaluator across invocations.
func WithEvaluator(e *Evaluator) InvocationOption {
	return func(inv *Invocation) { inv.evaluator = e }
}

// WithDescription marks the NoDataExpression properties of d as literal:
// GetNodeParameter returns their raw value instead of evaluating it.
func WithDescription(d NodeTypeDescription) InvocationOption {
	return func(inv *Invocation) {
		for _, p := range d.Properties {
			if p.NoDataExpression {
				if inv.literal == nil {
					inv.literal = make(map[string]bool)
				}
				inv.literal[p.Name] = true
			}
		}
	}
}

// WithLogger sets the execution logger.
func WithLogger(l *zap.Logger) InvocationOption {
	return func(inv *Invocation) { inv.logger = l }
}

// NewInvocation creates the execution surface for node with the given
// parameters. Parameters are copied; the caller may reuse its map.
func NewInvocation(node Node, parameters map[string]any, opts ...InvocationOption) *Invocation {
	params := make(map[string]any, len(parameters))
	for k, v := range parameters {
		params[k] = v
	}

	inv := &Invocation{
		node:       node,
		parameters: params,
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.evaluator == nil {
		inv.evaluator = NewEvaluator()
	}
	if inv.logger == nil {
		inv.logger = zap.NewNop()
	}
	return inv
}

// GetNodeParameter implements ExecuteFunctions.
func (inv *Invocation) GetNodeParameter(name string, itemIndex int, fallback any) (any, error) {
	raw, ok := inv.parameters[name]
	if !ok {
		if fallback != nil {
			return fallback, nil
		}
		return nil, &ParameterError{Name: name, Err: ErrParameterNotFound}
	}
	if inv.literal[name] {
		return raw, nil
	}

	env := map[string]any{
		"json":      inv.itemJSON(itemIndex),
		"parameter": inv.parameters,
		"itemIndex": itemIndex,
	}
	v, err := inv.evaluator.Resolve(raw, env)
	if err != nil {
		return nil, &ParameterError{Name: name, Err: err}
	}
	return v, nil
}

// GetCredentials implements ExecuteFunctions.
func (inv *Invocation) GetCredentials(ctx context.Context, credentialType string) (Credentials, error) {
	if inv.credentials == nil {
		return nil, fmt.Errorf("node %q has no credentials of type %q", inv.node.Name, credentialType)
	}
	creds, err := inv.credentials.Get(ctx, credentialType)
	if err != nil {
		return nil, fmt.Errorf("node %q credentials %q: %w", inv.node.Name, credentialType, err)
	}
	return creds, nil
}

// GetNode implements ExecuteFunctions.
func (inv *Invocation) GetNode() Node {
	return inv.node
}

// GetInputData implements ExecuteFunctions.
func (inv *Invocation) GetInputData() []ExecutionData {
	return inv.items
}

// Logger implements ExecuteFunctions.
func (inv *Invocation) Logger() *zap.Logger {
	return inv.logger
}

func (inv *Invocation) itemJSON(index int) map[string]any {
	if index < 0 || index >= len(inv.items) || inv.items[index].JSON == nil {
		return map[string]any{}
	}
	return inv.items[index].JSON
}

// StringParameter is a convenience wrapper returning a string parameter.
// A nil fallback makes the parameter required.
func StringParameter(fn ExecuteFunctions, name string, itemIndex int, fallback any) (string, error) {
	v, err := fn.GetNodeParameter(name, itemIndex, fallback)
	if err != nil {
		return "", err
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return "", &ParameterError{Name: name, Err: fmt.Errorf("expected string, got %T", v)}
	}
}

// IsParameterNotFound reports whether err is a missing-parameter error.
func IsParameterNotFound(err error) bool {
	return errors.Is(err, ErrParameterNotFound)
}

var _ ExecuteFunctions = (*Invocation)(nil)
