package handlers

import (
	stderrors "errors"
	"net/http"

	apperrors "github.com/namelens/coinbridge/internal/errors"
)

var defaultHTTPErrorResponder = func(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

var httpErrorResponder = defaultHTTPErrorResponder

// SetHTTPErrorResponder lets the server package inject its error handler.
// nil restores the default.
func SetHTTPErrorResponder(responder func(http.ResponseWriter, *http.Request, error)) {
	if responder == nil {
		httpErrorResponder = defaultHTTPErrorResponder
		return
	}
	httpErrorResponder = responder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}

// respondWithFailure maps a failed REST operation onto an envelope: bad
// query parameters are INVALID_INPUT, everything else goes through the
// upstream classes (rejected, rate limited, unavailable, timeout).
func respondWithFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	var qerr *queryError
	if stderrors.As(err, &qerr) {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), qerr, qerr.Error()))
		return
	}
	respondWithError(w, r, apperrors.FromUpstream(r.Context(), err, op+" failed"))
}

// unavailable answers 503 for a route whose backing service was not built,
// for example the Alpha routes without a store.
func unavailable(w http.ResponseWriter, r *http.Request, what string) {
	respondWithError(w, r, apperrors.NewServiceUnavailableError(what+" is not configured"))
}
