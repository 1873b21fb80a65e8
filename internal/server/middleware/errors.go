// Package middleware provides HTTP middleware for the nimbuscdn server.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
	"github.com/3leaps/nimbuscdn/internal/observability"
)

// ErrorResponse is the JSON body written for errors caught by middleware.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery converts panics into INTERNAL_ERROR responses.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := apperrors.RequestIDFrom(r.Context())
			observability.CLILogger.Error("Panic recovered",
				zap.Any("panic", rec),
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.ByteString("stack", debug.Stack()),
			)

			envelope := errors.NewErrorEnvelope(apperrors.CodeInternal, fmt.Sprintf("panic: %v", rec))
			if requestID != "" {
				envelope = envelope.WithCorrelationID(requestID)
			}
			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is an alias for Recovery kept for router setups that name
// their error middleware explicitly.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

// writeErrorResponse writes envelope with the given status code.
func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, status int) {
	apperrors.WriteEnvelope(w, status, envelope)
}
