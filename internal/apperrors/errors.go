// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation       = errors.New("validation error")
	ErrSubmission       = errors.New("submission failed")
	ErrJobTimeout       = errors.New("job timed out")
	ErrMalformedResult  = errors.New("malformed result")
	ErrRemoteJob        = errors.New("remote job failed")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrInternal         = errors.New("internal error")
)

// Error provides a structured error with context about the failing run.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "tool", "callbackType")
	Tool     string // Tool whose gatekeeper was involved
	JobID    string // Job identifier, when one was obtained
	Op       string // Operation that failed (e.g., "gateway.submit")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Submission creates a submission error for a tool endpoint.
func Submission(tool, message string, cause error) error {
	return &Error{
		Sentinel: ErrSubmission,
		Message:  message,
		Tool:     tool,
		Op:       "gateway.submit",
		Cause:    cause,
	}
}

// JobTimeout creates a timeout error carrying the configured window and elapsed time.
func JobTimeout(tool, jobID string, window, elapsed time.Duration) error {
	return &Error{
		Sentinel: ErrJobTimeout,
		Message:  fmt.Sprintf("no heartbeat or result within %s (waited %s)", window, elapsed.Round(time.Second)),
		Tool:     tool,
		JobID:    jobID,
		Op:       "gateway.wait",
	}
}

// MalformedResult creates an error for an undecodable terminal message.
func MalformedResult(tool, jobID string, cause error) error {
	return &Error{
		Sentinel: ErrMalformedResult,
		Message:  fmt.Sprintf("terminal message could not be decoded: %v", cause),
		Tool:     tool,
		JobID:    jobID,
		Op:       "gateway.wait",
		Cause:    cause,
	}
}

// RemoteJob creates an error carrying a gatekeeper's application-level error verbatim.
func RemoteJob(tool, jobID, remoteMessage string) error {
	return &Error{
		Sentinel: ErrRemoteJob,
		Message:  remoteMessage,
		Tool:     tool,
		JobID:    jobID,
	}
}

// ArtifactNotFound creates an error for a result file missing at its expected path.
func ArtifactNotFound(path string) error {
	return &Error{
		Sentinel: ErrArtifactNotFound,
		Message:  fmt.Sprintf("result artifact not found at %s", path),
		Op:       "result.finalize",
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
