package workflow

import (
	"errors"
	"fmt"
)

// ErrParameterNotFound is returned when a required parameter is absent.
var ErrParameterNotFound = errors.New("could not get parameter")

// OperationError is a node-level failure bound to the node that raised it.
//
// Error returns Message verbatim so the host can surface the vendor's text
// unchanged.
type OperationError struct {
	// Node is the node the error is attached to.
	Node Node

	// Message is the human-readable failure description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// NewOperationError creates an OperationError for node.
func NewOperationError(node Node, message string, cause error) *OperationError {
	return &OperationError{Node: node, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	return e.Cause
}

// IsOperationError reports whether err is or wraps an OperationError.
func IsOperationError(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}

// ParameterError describes a parameter that could not be resolved.
type ParameterError struct {
	Name string
	Err  error
}

// Error implements the error interface.
func (e *ParameterError) Error() string {
	return fmt.Sprintf("parameter %q: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParameterError) Unwrap() error {
	return e.Err
}
