// Package errors provides structured error types for the metergen pipeline.
// Every error carries a category naming the pipeline stage it came from, a
// code, a message and a retryable flag so failures can be captured as values
// and aggregated into the run report.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryGeneration ErrorCategory = "GENERATION"
	ErrCategoryWrite      ErrorCategory = "WRITE"
	ErrCategoryUpload     ErrorCategory = "UPLOAD"
	ErrCategoryCleanup    ErrorCategory = "CLEANUP"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeInvalidDate   = "INVALID_DATE"

	// Generation codes
	CodeIdentifierUnderfill = "IDENTIFIER_UNDERFILL"
	CodeSnapshotCorrupt     = "SNAPSHOT_CORRUPT"

	// Write codes
	CodeWriteFailed = "WRITE_FAILED"

	// Upload codes
	CodeUploadFailed = "UPLOAD_FAILED"

	// Cleanup codes
	CodeDeleteFailed = "DELETE_FAILED"

	// Storage codes
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeBucketOpen     = "BUCKET_OPEN"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// MetergenError is the structured error type used throughout the pipeline.
type MetergenError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *MetergenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *MetergenError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *MetergenError) Is(target error) bool {
	var t *MetergenError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new MetergenError.
func New(category ErrorCategory, code, message string) *MetergenError {
	return &MetergenError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new MetergenError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *MetergenError {
	return &MetergenError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *MetergenError) WithDetails(details map[string]interface{}) *MetergenError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Nothing in the pipeline retries today; the flag is stored with each
// failure so a later replay can pick the retryable ones.
func IsRetryable(err error) bool {
	var me *MetergenError
	if errors.As(err, &me) {
		return me.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a MetergenError.
func GetCategory(err error) ErrorCategory {
	var me *MetergenError
	if errors.As(err, &me) {
		return me.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a MetergenError.
func GetCode(err error) string {
	var me *MetergenError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryUpload && code == CodeUploadFailed:
		return true
	case category == ErrCategoryWrite && code == CodeWriteFailed:
		return true
	case category == ErrCategoryCleanup && code == CodeDeleteFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *MetergenError {
	return New(ErrCategoryValidation, code, message)
}

func NewWriteError(message string, cause error) *MetergenError {
	return Wrap(ErrCategoryWrite, CodeWriteFailed, message, cause)
}

func NewUploadError(message string, cause error) *MetergenError {
	return Wrap(ErrCategoryUpload, CodeUploadFailed, message, cause)
}

func NewCleanupError(message string, cause error) *MetergenError {
	return Wrap(ErrCategoryCleanup, CodeDeleteFailed, message, cause)
}

func NewStorageError(code, message string, cause error) *MetergenError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *MetergenError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
