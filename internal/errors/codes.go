// Package errors provides structured error handling for searchcore.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors
//   - 3XX: Collaborator (network) errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates chunk store and index persistence errors.
	CategoryStorage Category = "STORAGE"
	// CategoryCollaborator indicates errors from external collaborators.
	CategoryCollaborator Category = "COLLABORATOR"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199). All fatal at startup.
	ErrCodeConfigInvalid  = "ERR_101_CONFIG_INVALID"
	ErrCodeWeightsInvalid = "ERR_102_WEIGHTS_INVALID"

	// Storage errors (200-299)
	ErrCodeStoreFailed   = "ERR_201_STORE_FAILED"
	ErrCodeChunkNotFound = "ERR_202_CHUNK_NOT_FOUND"

	// Collaborator errors (300-399)
	ErrCodeCollaboratorTimeout     = "ERR_301_COLLABORATOR_TIMEOUT"
	ErrCodeCollaboratorUnavailable = "ERR_302_COLLABORATOR_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidQuery  = "ERR_401_INVALID_QUERY"
	ErrCodeInvalidFilter = "ERR_402_INVALID_FILTER"
	ErrCodeInvalidTopK   = "ERR_403_INVALID_TOP_K"

	// Internal errors (500-599)
	ErrCodeInternal            = "ERR_501_INTERNAL"
	ErrCodeNormalizationFailed = "ERR_502_NORMALIZATION_FAILED"
	ErrCodeIndexRebuildFailed  = "ERR_503_INDEX_REBUILD_FAILED"
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
		return CategoryStorage
	case '3':
		return CategoryCollaborator
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryConfig:
		// Configuration errors fail service initialization.
		return SeverityFatal
	case CategoryCollaborator:
		// Collaborator failures degrade, they never abort a request.
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeCollaboratorTimeout, ErrCodeCollaboratorUnavailable:
		return true
	default:
		return false
	}
}
