// Package handlers implements the nimbuscdn HTTP endpoints.
package handlers

import (
	"net/http"

	apperrors "github.com/3leaps/nimbuscdn/internal/errors"
)

// HTTPErrorResponder writes err as an HTTP response.
type HTTPErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

var httpErrorResponder HTTPErrorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder replaces the responder used by all handlers. A nil
// responder restores the default.
func SetHTTPErrorResponder(responder HTTPErrorResponder) {
	if responder == nil {
		httpErrorResponder = apperrors.RespondWithError
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = apperrors.RespondWithError
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
