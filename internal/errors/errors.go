// Package errors defines the HTTP error envelope returned by the nimbuscdn
// server and helpers for mapping Go errors onto it.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	gferrors "github.com/fulmenhq/gofulmen/errors"
)

// Error codes used in HTTP error responses.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeExternalService    = "EXTERNAL_SERVICE_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// HTTPError is the body of an error response, rendered from a gofulmen
// ErrorEnvelope.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// HTTPErrorResponse wraps HTTPError the way it appears on the wire.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// AppError is an error that knows its HTTP status and response code.
type AppError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of e with key set in its details.
func (e *AppError) WithDetails(key string, value any) *AppError {
	c := *e
	c.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		c.Details[k] = v
	}
	c.Details[key] = value
	return &c
}

// NewAppError creates an AppError.
func NewAppError(status int, code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

// BadRequest returns a 400 error.
func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message)
}

// Validation returns a 422 error for input that parsed but is not acceptable.
func Validation(message string, err error) *AppError {
	return &AppError{Status: http.StatusUnprocessableEntity, Code: CodeValidation, Message: message, Err: err}
}

// NotFound returns a 404 error.
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message)
}

// MethodNotAllowed returns a 405 error.
func MethodNotAllowed(method, path string) *AppError {
	return NewAppError(http.StatusMethodNotAllowed, CodeMethodNotAllowed,
		fmt.Sprintf("method %s not allowed for %s", method, path))
}

// Unauthorized returns a 401 error.
func Unauthorized(message string, err error) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message, Err: err}
}

// ServiceUnavailable returns a 503 error.
func ServiceUnavailable(message string) *AppError {
	return NewAppError(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// NewExternalServiceError returns a 502 error for a failed vendor call. The
// vendor message is passed through unchanged.
func NewExternalServiceError(service string, err error) *AppError {
	msg := service + " request failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &AppError{
		Status:  http.StatusBadGateway,
		Code:    CodeExternalService,
		Message: msg,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// WrapInternal returns a 500 error wrapping err.
func WrapInternal(err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: "internal server error", Err: err}
}

// Envelope converts e into a gofulmen error envelope. The request ID becomes
// the correlation ID and details become the envelope context.
func (e *AppError) Envelope(requestID string) *gferrors.ErrorEnvelope {
	env := gferrors.NewErrorEnvelope(e.Code, e.Message)
	if requestID != "" {
		env = env.WithCorrelationID(requestID)
	}
	if len(e.Details) > 0 {
		if withContext, err := env.WithContext(e.Details); err == nil && withContext != nil {
			env = withContext
		}
	}
	return env
}

// RespondWithError writes err as a JSON error envelope. Errors that are not
// AppErrors become 500s without leaking their text.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var app *AppError
	if !stderrors.As(err, &app) {
		app = WrapInternal(err)
	}

	requestID := ""
	if r != nil {
		requestID = RequestIDFrom(r.Context())
	}
	WriteEnvelope(w, app.Status, app.Envelope(requestID))
}

// WriteEnvelope writes env in the {"error": {...}} wire shape.
func WriteEnvelope(w http.ResponseWriter, status int, env *gferrors.ErrorEnvelope) {
	WriteJSON(w, status, HTTPErrorResponse{Error: HTTPError{
		Code:      env.Code,
		Message:   env.Message,
		RequestID: env.CorrelationID,
		Details:   env.Context,
	}})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type requestIDKey struct{}

// WithRequestID stores a request ID in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID stored in ctx, or "".
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
