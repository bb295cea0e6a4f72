// Package errors provides structured error handling for pulse.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Ingestion and extraction errors (file, format)
//   - 3XX: External dependency errors (embedding, tagging backends)
//   - 4XX: Validation and lookup errors
//   - 5XX: Internal and storage errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIngest indicates file ingestion and extraction errors.
	CategoryIngest Category = "INGEST"
	// CategoryDependency indicates external backend errors (embedding, tagging).
	CategoryDependency Category = "DEPENDENCY"
	// CategoryValidation indicates input validation and lookup errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal or storage errors.
	CategoryInternal Category = "INTERNAL"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Ingestion errors (200-299)
	ErrCodeFileNotFound      = "ERR_201_FILE_NOT_FOUND"
	ErrCodeUnsupportedType   = "ERR_202_UNSUPPORTED_TYPE"
	ErrCodeExtractionFailed  = "ERR_203_EXTRACTION_FAILED"
	ErrCodeFileTooLarge      = "ERR_204_FILE_TOO_LARGE"
	ErrCodeExtractionTimeout = "ERR_205_EXTRACTION_TIMEOUT"

	// External dependency errors (300-399)
	ErrCodeEmbeddingUnavailable = "ERR_301_EMBEDDING_UNAVAILABLE"
	ErrCodeTaggingUnavailable   = "ERR_302_TAGGING_UNAVAILABLE"
	ErrCodeDependencyTimeout    = "ERR_303_DEPENDENCY_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeEmptyQuery       = "ERR_402_EMPTY_QUERY"
	ErrCodeInvalidTopK      = "ERR_403_INVALID_TOP_K"
	ErrCodeNotFound         = "ERR_404_NOT_FOUND"
	ErrCodeDuplicateVersion = "ERR_409_DUPLICATE_VERSION"

	// Internal errors (500-599)
	ErrCodeInternal           = "ERR_501_INTERNAL"
	ErrCodeStorageConsistency = "ERR_502_STORAGE_CONSISTENCY"
	ErrCodeSearchFailed       = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIngest
	case '3':
		return CategoryDependency
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from error code.
// Dependency errors degrade the operation; everything else fails it.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryDependency:
		return SeverityWarning
	case CategoryInternal:
		if code == ErrCodeStorageConsistency {
			return SeverityFatal
		}
		return SeverityError
	default:
		return SeverityError
	}
}

// isRetryableCode reports whether operations failing with this code may be retried.
// Only external dependency errors are transient.
func isRetryableCode(code string) bool {
	return categoryFromCode(code) == CategoryDependency
}
