package errors

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrorType defines distinct categories for errors originating from mkhls components.
type ErrorType string

const (
	// ValidationError represents errors caused by invalid input parameters or configuration.
	ValidationError ErrorType = "validation_error"
	// ProbeError represents errors while inspecting the source media with ffprobe.
	ProbeError ErrorType = "probe_error"
	// PlanningError represents errors while deriving the rendition or preview plan.
	PlanningError ErrorType = "planning_error"
	// TranscodeError represents errors during the ffmpeg transcoding run.
	TranscodeError ErrorType = "transcode_error"
	// SpriteError represents errors while compositing the scrub-preview sprite or cues.
	SpriteError ErrorType = "sprite_error"
	// SystemError represents underlying system issues, such as file I/O errors
	// or command execution problems (excluding the transcode itself).
	SystemError ErrorType = "system_error"
)

// StructuredError represents a detailed error from an mkhls operation.
// It includes a type, message, optional details, timestamp, and a specific
// error code. It implements the standard Go `error` interface.
type StructuredError struct {
	// Type categorizes the error (e.g., ProbeError, TranscodeError).
	Type ErrorType `json:"type"`
	// Message provides a concise, human-readable description of the error.
	Message string `json:"message"`
	// Details offers additional context or the underlying error message, if available.
	Details string `json:"details,omitempty"`
	// Timestamp marks when the error occurred in RFC3339 format.
	Timestamp string `json:"timestamp"`
	// Code provides a specific integer code unique to the error source within its type.
	Code int `json:"code"`

	cause error
}

// Error implements the standard `error` interface for StructuredError.
func (e *StructuredError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Message, e.Details)
}

// Unwrap returns the underlying error, if this error wraps one.
func (e *StructuredError) Unwrap() error {
	return e.cause
}

// JSON returns the StructuredError serialized as a JSON string.
func (e *StructuredError) JSON() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// New creates a new StructuredError instance.
// It automatically sets the Timestamp to the current time.
func New(errorType ErrorType, message, details string, code int) *StructuredError {
	return &StructuredError{
		Type:      errorType,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().Format(time.RFC3339),
		Code:      code,
	}
}

// Wrap creates a new StructuredError, using the message from an existing
// standard Go error as the Details field. If `err` is nil, Details is empty.
func Wrap(err error, errorType ErrorType, message string, code int) *StructuredError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	se := New(errorType, message, details, code)
	se.cause = err
	return se
}
