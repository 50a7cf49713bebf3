// Package errors provides structured error handling for schemamatch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (catalog files, locks)
//   - 3XX: Database connectivity errors
//   - 4XX: Validation errors (records, thresholds, queries)
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and lock errors.
	CategoryIO Category = "IO"
	// CategoryDatabase indicates database connectivity errors.
	CategoryDatabase Category = "DATABASE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
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
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileNotFound    = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission  = "ERR_202_FILE_PERMISSION"
	ErrCodeCatalogCorrupt  = "ERR_203_CATALOG_CORRUPT"
	ErrCodeLockUnavailable = "ERR_204_LOCK_UNAVAILABLE"

	// Database errors (300-399)
	ErrCodeDatabaseTimeout     = "ERR_301_DATABASE_TIMEOUT"
	ErrCodeDatabaseUnavailable = "ERR_302_DATABASE_UNAVAILABLE"
	ErrCodeUnsupportedDSN      = "ERR_303_UNSUPPORTED_DSN"

	// Validation errors (400-499)
	ErrCodeInvalidInput     = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidRecord    = "ERR_402_INVALID_RECORD"
	ErrCodeInvalidThreshold = "ERR_403_INVALID_THRESHOLD"
	ErrCodeQueryEmpty       = "ERR_404_QUERY_EMPTY"
	ErrCodeUnknownMetric    = "ERR_405_UNKNOWN_SIMILARITY"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeIndexNotLoaded = "ERR_502_INDEX_NOT_LOADED"
	ErrCodeIndexFailed    = "ERR_503_INDEX_FAILED"
	ErrCodeMatchFailed    = "ERR_504_MATCH_FAILED"
	ErrCodeSQLFailed      = "ERR_505_SQL_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "402" from "ERR_402_INVALID_RECORD"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryDatabase
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCatalogCorrupt:
		return SeverityFatal
	case ErrCodeInvalidRecord:
		// Skipped records degrade the index but never stop a build.
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeDatabaseTimeout, ErrCodeDatabaseUnavailable, ErrCodeLockUnavailable:
		return true
	default:
		return false
	}
}
