package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the categories of pipeline failures.
type ErrorType string

const (
	// ErrorTypeInput covers missing or undecodable source images. It is
	// raised before any stage runs.
	ErrorTypeInput ErrorType = "input"
	// ErrorTypeStage covers an algorithmic step that failed, for example an
	// unavailable background removal model.
	ErrorTypeStage ErrorType = "stage"
	// ErrorTypeIO covers failures writing a persisted artifact.
	ErrorTypeIO ErrorType = "io"
)

// AppError represents a structured pipeline error
type AppError struct {
	Type    ErrorType `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := string(e.Type)
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s[%s]", e.Type, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewInputError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInput, Message: message, Cause: cause}
}

func NewStageError(stage, message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeStage, Stage: stage, Message: message, Cause: cause}
}

func NewIOError(stage, message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeIO, Stage: stage, Message: message, Cause: cause}
}

// IsType reports whether any error in err's chain is an AppError of the
// given type.
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode maps an error to the HTTP status used by the transport layer.
func GetStatusCode(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError
	}
	switch appErr.Type {
	case ErrorTypeInput:
		return http.StatusBadRequest
	case ErrorTypeStage:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
