// Package apperrors provides unified error handling for the service.
// It implements structured error types with error codes, HTTP status mapping,
// and retryable detection.
package apperrors

import (
	"fmt"
	"net/http"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// --- Common error constructors ---

// Validation creates a new AppError for invalid request input.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// MissingField creates a new AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code: ErrCodeMissingField, Message: fmt.Sprintf("Missing required field: %s", field),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"field": field},
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// Unauthorized creates a new AppError for unauthorized access.
func Unauthorized(reason string) *AppError {
	if reason == "" {
		reason = "Authentication required."
	}
	return &AppError{
		Code: ErrCodeUnauthorized, Message: reason,
		HTTPStatus: http.StatusUnauthorized, Retryable: false,
	}
}

// Forbidden creates a new AppError for forbidden access.
func Forbidden(reason string) *AppError {
	if reason == "" {
		reason = "You don't have permission to perform this action."
	}
	return &AppError{
		Code: ErrCodeForbidden, Message: reason,
		HTTPStatus: http.StatusForbidden, Retryable: false,
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// DatabaseError creates a new AppError for a database error.
func DatabaseError(cause error) *AppError {
	return &AppError{
		Code: ErrCodeDatabaseError, Message: "A database error occurred. Please try again.",
		HTTPStatus: http.StatusInternalServerError, Retryable: true, Cause: cause,
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("The %s operation took too long.", operation),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// --- Domain error constructors ---

// Configuration creates a new AppError for missing service configuration.
// Surfaced synchronously before any background job is created.
func Configuration(what string) *AppError {
	return &AppError{
		Code: ErrCodeConfiguration, Message: fmt.Sprintf("Service is not configured: %s", what),
		HTTPStatus: http.StatusBadRequest, Retryable: false,
		Details: map[string]any{"missing": what},
	}
}

// Vendor creates a new AppError for a transcription vendor failure. Only ever
// recorded into the upload ledger; the HTTP caller already received 202.
func Vendor(vendor, reason string) *AppError {
	return &AppError{
		Code: ErrCodeVendor, Message: fmt.Sprintf("Transcription failed at %s: %s", vendor, reason),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"vendor": vendor},
	}
}

// Normalization creates a new AppError for a vendor payload that yielded no
// usable segments.
func Normalization(vendor string) *AppError {
	return &AppError{
		Code: ErrCodeNormalization, Message: fmt.Sprintf("No speech segments could be extracted from the %s response.", vendor),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"vendor": vendor},
	}
}

// Enrichment creates a new AppError for a best-effort enrichment failure.
// Callers log these at warning level and never fail the pipeline on them.
func Enrichment(stage string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeEnrichment, Message: fmt.Sprintf("Enrichment stage %s failed.", stage),
		HTTPStatus: http.StatusInternalServerError, Retryable: true,
		Details: map[string]any{"stage": stage}, Cause: cause,
	}
}

// Overloaded creates a new AppError for a subsystem that is at capacity.
func Overloaded(what string) *AppError {
	return &AppError{
		Code: ErrCodeOverloaded, Message: fmt.Sprintf("The %s is at capacity. Please retry shortly.", what),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
	}
}

// ExternalServiceError creates a new AppError for an error from an external service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error. Please try again.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}
