package apperrors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the appropriate HTTP status code.
// Gatekeeper-side failures surface as gateway errors so callers can tell
// whose fault a failed run was.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrSubmission), errors.Is(err, ErrRemoteJob), errors.Is(err, ErrMalformedResult):
		return http.StatusBadGateway
	case errors.Is(err, ErrJobTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
