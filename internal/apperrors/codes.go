package apperrors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Validation errors
const (
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
)

// Resource errors
const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Authentication/Authorization errors
const (
	// ErrCodeUnauthorized indicates the request is unauthorized.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden ErrorCode = "FORBIDDEN"
)

// Internal errors
const (
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabaseError indicates a database error.
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeOverloaded indicates a subsystem is at capacity.
	ErrCodeOverloaded ErrorCode = "OVERLOADED"
)

// Pipeline errors
const (
	// ErrCodeConfiguration indicates missing vendor or storage configuration.
	ErrCodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
	// ErrCodeVendor indicates a transcription vendor rejected or failed a job.
	ErrCodeVendor ErrorCode = "VENDOR_ERROR"
	// ErrCodeNormalization indicates a vendor payload yielded zero segments.
	ErrCodeNormalization ErrorCode = "NORMALIZATION_ERROR"
	// ErrCodeEnrichment indicates a best-effort enrichment step failed.
	ErrCodeEnrichment ErrorCode = "ENRICHMENT_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:         true,
	ErrCodeOverloaded:      true,
	ErrCodeDatabaseError:   true,
	ErrCodeExternalService: true,
	ErrCodeVendor:          true,
	ErrCodeEnrichment:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
