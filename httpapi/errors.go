package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/AntonStoeckl/library-borrowing-go/library"
)

const msgInternalServerError = "internal server error"

// statusFor maps an error to an HTTP status. notFoundStatus is the status for library.ErrNotFound,
// which depends on whether the missing entity is the addressed resource or a referenced one.
func statusFor(err error, notFoundStatus int) int {
	switch {
	case errors.Is(err, library.ErrNotFound):
		return notFoundStatus
	case errors.Is(err, library.ErrValidationFailed),
		errors.Is(err, library.ErrDuplicateKey),
		errors.Is(err, library.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, library.ErrConcurrencyConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes the error response. Messages of technical failures are logged, not sent to the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, notFoundStatus int) {
	status := statusFor(err, notFoundStatus)

	message := clientMessage(err)
	if status >= http.StatusInternalServerError {
		h.logError(r.Context(), logMsgRequestFailed, err)
		message = msgInternalServerError
	}

	if status == http.StatusConflict {
		message = "the request conflicted with a concurrent request, please retry"
	}

	writeJSON(w, status, errorResponse{Error: message})
}

// clientMessage flattens a joined error into one line, e.g. "invalid state: book has already been returned".
func clientMessage(err error) string {
	return strings.ReplaceAll(err.Error(), "\n", ": ")
}
