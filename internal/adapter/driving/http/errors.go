package httphandler

import (
	"errors"
	"net/http"

	"github.com/ericfisherdev/kubehub/internal/domain/port/driven"
)

const (
	rateLimitedMessage   = "Too many requests to GitHub API"
	internalErrorMessage = "Internal Server Error!"
)

// errorStatus maps one error kind to the response written for it.
type errorStatus struct {
	matches func(error) bool
	status  int
	message string
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func isUpstreamError(err error) bool {
	var upstreamErr *driven.UpstreamError
	return errors.As(err, &upstreamErr)
}

// errorStatuses is consulted in order; the first match wins. Anything
// unmatched is an internal error.
var errorStatuses = []errorStatus{
	{matches: is(driven.ErrRateLimited), status: http.StatusForbidden, message: rateLimitedMessage},
	{matches: isUpstreamError, status: http.StatusInternalServerError, message: internalErrorMessage},
	{matches: is(driven.ErrMissingField), status: http.StatusInternalServerError, message: internalErrorMessage},
	{matches: is(driven.ErrCacheUnavailable), status: http.StatusInternalServerError, message: internalErrorMessage},
}

// statusFor returns the status code and body for err.
func statusFor(err error) (int, string) {
	for _, e := range errorStatuses {
		if e.matches(err) {
			return e.status, e.message
		}
	}
	return http.StatusInternalServerError, internalErrorMessage
}

// writeServiceError logs err and writes the fixed response for its kind.
// Error details never reach the client.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)

	h.logger.Error("request failed",
		"path", r.URL.Path,
		"status", status,
		"error", err,
	)

	writeText(w, status, message)
}
