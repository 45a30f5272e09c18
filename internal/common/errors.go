package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error taxonomy codes. Everything below CodeDocumentUnreadable degrades the
// output instead of aborting the run.
const (
	CodeDocumentUnreadable    = "DOCUMENT_UNREADABLE"
	CodeExtractionFailed      = "EXTRACTION_FAILED"
	CodeConsolidationFailed   = "CONSOLIDATION_FAILED"
	CodeTemplateMappingFailed = "TEMPLATE_MAPPING_FAILED"
	CodeSchemaInvalid         = "SCHEMA_INVALID"
	CodeConfigError           = "CONFIG_ERROR"
	CodeInvalidArgument       = "INVALID_ARGUMENT"
)

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")

	// ErrNoData marks a definitive "nothing extractable on this page" model
	// response. Terminal: never retried, never counted as a failure.
	ErrNoData = errors.New("no extractable data")

	// ErrRateLimited, ErrMalformedResponse and ErrBackendUnavailable are the
	// transient inference failures; callers retry them up to the configured
	// bound.
	ErrRateLimited        = errors.New("rate limited")
	ErrMalformedResponse  = errors.New("malformed model response")
	ErrBackendUnavailable = errors.New("inference backend unavailable")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ErrorCode extracts the taxonomy code from an error chain, or "" when the
// chain carries no AppError.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
