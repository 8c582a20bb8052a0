// Package server provides the HTTP API for AI visibility test runs,
// reports, usage and deep-dive requests.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/ai-visibility/internal/artifacts"
	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/deepdive"
	"github.com/jonathan/ai-visibility/internal/jobs"
	"github.com/jonathan/ai-visibility/internal/orchestrator"
	"github.com/jonathan/ai-visibility/internal/report"
	"github.com/jonathan/ai-visibility/internal/subscription"
	"github.com/jonathan/ai-visibility/internal/types"
)

// ErrInvalidCredentials is returned by the admin login for a wrong password.
var ErrInvalidCredentials = errors.New("invalid password")

// ErrValidation indicates request validation failure outside the types
// package, such as an unreadable body.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return "validation error: " + e.Field + " - " + e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		validation    *types.ValidationError
		reqValidation *ErrValidation
		backend       *orchestrator.BackendError
		jobFailed     *orchestrator.JobFailedError
		format        *report.FormatError
		limit         *subscription.LimitError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &reqValidation),
		errors.As(err, &format), errors.Is(err, artifacts.ErrInvalidReportID):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.As(err, &limit):
		return http.StatusForbidden
	case errors.Is(err, correlation.ErrNotFound), errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, deepdive.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrTimedOut):
		return http.StatusRequestTimeout
	case errors.Is(err, jobs.ErrTransition), errors.Is(err, deepdive.ErrCompleted),
		errors.Is(err, orchestrator.ErrRemoteMode):
		return http.StatusConflict
	case errors.Is(err, subscription.ErrLimitReached):
		return http.StatusTooManyRequests
	case errors.As(err, &backend):
		return http.StatusBadGateway
	case errors.As(err, &jobFailed):
		return http.StatusInternalServerError
	case errors.Is(err, config.ErrAuthDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON body for err. Backend failures carry a hint for
// the operator in "details".
func errorBody(err error) map[string]string {
	body := map[string]string{"error": err.Error()}
	var backend *orchestrator.BackendError
	if errors.As(err, &backend) {
		body["error"] = backend.Message
		body["details"] = backend.Hint()
	}
	return body
}
