// Package errors provides coded domain errors for the chapter pipeline.
//
// Usage:
//
//	// In the pipeline - return typed errors
//	if strings.TrimSpace(in.Text) == "" {
//	    return nil, errors.TranscriptEmpty("transcript has no words")
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrModelLoadFailure) {
//	    // hard failure, surface to the client
//	}
//
//	// Soft failures are recovered with fallback chapters
//	if errors.IsSoft(err) {
//	    result = fallback(...)
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the application.
const (
	CodeNotFound                Code = "NOT_FOUND"
	CodeValidation              Code = "VALIDATION"
	CodeInternal                Code = "INTERNAL"
	CodeRateLimited             Code = "RATE_LIMITED"
	CodeDownloadFailure         Code = "DOWNLOAD_FAILURE"
	CodeTranscriptEmpty         Code = "TRANSCRIPT_EMPTY"
	CodeModelLoadFailure        Code = "MODEL_LOAD_FAILURE"
	CodeLLMCallFailure          Code = "LLM_CALL_FAILURE"
	CodeJSONParseFailure        Code = "JSON_PARSE_FAILURE"
	CodeSchemaValidationFailure Code = "SCHEMA_VALIDATION_FAILURE"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeValidation:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTranscriptEmpty:
		return http.StatusUnprocessableEntity
	case CodeDownloadFailure:
		return http.StatusBadGateway
	case CodeModelLoadFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Soft reports whether failures with this code are recovered by the
// pipeline with fallback chapters instead of being surfaced to the caller.
func (c Code) Soft() bool {
	switch c {
	case CodeLLMCallFailure, CodeJSONParseFailure, CodeSchemaValidationFailure, CodeValidation:
		return true
	default:
		return false
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound                = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation              = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal                = &Error{Code: CodeInternal, Message: "internal error"}
	ErrRateLimited             = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrDownloadFailure         = &Error{Code: CodeDownloadFailure, Message: "transcript acquisition failed"}
	ErrTranscriptEmpty         = &Error{Code: CodeTranscriptEmpty, Message: "transcript is empty"}
	ErrModelLoadFailure        = &Error{Code: CodeModelLoadFailure, Message: "model load failed"}
	ErrLLMCallFailure          = &Error{Code: CodeLLMCallFailure, Message: "model call failed"}
	ErrJSONParseFailure        = &Error{Code: CodeJSONParseFailure, Message: "no JSON found in model response"}
	ErrSchemaValidationFailure = &Error{Code: CodeSchemaValidationFailure, Message: "model response failed schema validation"}
)

// CodeOf returns the code of the outermost *Error in err's chain, or
// CodeInternal when err carries no domain code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsSoft reports whether err is a recoverable pipeline failure.
func IsSoft(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code.Soft()
}

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// TranscriptEmpty creates a transcript empty error.
func TranscriptEmpty(msg string) *Error {
	return &Error{Code: CodeTranscriptEmpty, Message: msg}
}

// DownloadFailuref creates a download failure error with formatted message.
func DownloadFailuref(format string, args ...any) *Error {
	return &Error{Code: CodeDownloadFailure, Message: fmt.Sprintf(format, args...)}
}

// JSONParseFailure creates a JSON parse failure error.
func JSONParseFailure(msg string) *Error {
	return &Error{Code: CodeJSONParseFailure, Message: msg}
}

// SchemaValidationFailure creates a schema validation failure error.
func SchemaValidationFailure(msg string) *Error {
	return &Error{Code: CodeSchemaValidationFailure, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
