// Package errors provides structured error handling for SteelTrace.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Input and IO errors (file, format)
//   - 3XX: Provider errors (LLM, embedding, routing)
//   - 4XX: Validation and parse errors
//   - 5XX: Internal errors
//   - 6XX: Storage and vector index errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, format, and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryProvider indicates LLM/embedding provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryValidation indicates input validation and parse errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryStorage indicates document store and vector index errors.
	CategoryStorage Category = "STORAGE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Input/IO errors (200-299)
	ErrCodeInputNotFound = "ERR_201_INPUT_NOT_FOUND"
	ErrCodeInvalidFormat = "ERR_202_INVALID_FORMAT"
	ErrCodeFileCorrupt   = "ERR_203_FILE_CORRUPT"
	ErrCodeRasterFailed  = "ERR_204_RASTER_FAILED"

	// Provider errors (300-399)
	ErrCodeNoModelAvailable  = "ERR_301_NO_MODEL_AVAILABLE"
	ErrCodeNoCredentials     = "ERR_302_NO_CREDENTIALS"
	ErrCodeProviderTransient = "ERR_303_PROVIDER_TRANSIENT"
	ErrCodeProviderPermanent = "ERR_304_PROVIDER_PERMANENT"
	ErrCodeEmbeddingFailed   = "ERR_305_EMBEDDING_FAILED"

	// Validation/parse errors (400-499)
	ErrCodeParseFailure    = "ERR_401_PARSE_FAILURE"
	ErrCodeSchemaViolation = "ERR_402_SCHEMA_VIOLATION"
	ErrCodeInvalidShape    = "ERR_403_INVALID_SHAPE"
	ErrCodeInvalidQuery    = "ERR_404_INVALID_QUERY"
	ErrCodeInvalidInput    = "ERR_405_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal  = "ERR_501_INTERNAL"
	ErrCodeCancelled = "ERR_502_CANCELLED"

	// Storage/vector errors (600-699)
	ErrCodeStorageTransient         = "ERR_601_STORAGE_TRANSIENT"
	ErrCodeStorageFailed            = "ERR_602_STORAGE_FAILED"
	ErrCodeVectorBackendUnavailable = "ERR_603_VECTOR_BACKEND_UNAVAILABLE"
	ErrCodeDimensionMismatch        = "ERR_604_DIMENSION_MISMATCH"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_INPUT_NOT_FOUND")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryValidation
	case '6':
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal errors short-circuit the whole request: nothing is written.
	switch code {
	case ErrCodeInputNotFound, ErrCodeInvalidFormat,
		ErrCodeNoModelAvailable, ErrCodeNoCredentials:
		return SeverityFatal
	}

	// Retryable errors get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	// Default to error severity
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeProviderTransient, ErrCodeStorageTransient, ErrCodeVectorBackendUnavailable:
		return true
	default:
		return false
	}
}
