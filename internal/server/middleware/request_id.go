package middleware

import (
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
)

// RequestIDHeader carries the request ID in and out of the server.
const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(apperrors.WithRequestID(r.Context(), id)))
	})
}
