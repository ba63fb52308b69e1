// Package errors provides structured error types for setbench.
// Every error carries a category, a code, a message and a retryable flag so
// callers can branch on the kind of failure without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the component that raised them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryBenchmark  ErrorCategory = "BENCHMARK"
	ErrCategoryStress     ErrorCategory = "STRESS"
	ErrCategoryExport     ErrorCategory = "EXPORT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes.
const (
	// Validation codes
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeInvalidRecord        = "INVALID_RECORD"

	// Store codes
	CodeNotFound    = "NOT_FOUND"
	CodeQueryFailed = "QUERY_FAILED"

	// Benchmark codes
	CodeInsufficientData = "INSUFFICIENT_DATA"

	// Export codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeInvariantViolation = "INVARIANT_VIOLATION"
	CodeUnexpected         = "UNEXPECTED"
)

// SetbenchError is the structured error type used throughout the system.
type SetbenchError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *SetbenchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *SetbenchError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *SetbenchError) Is(target error) bool {
	var t *SetbenchError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new SetbenchError.
func New(category ErrorCategory, code, message string) *SetbenchError {
	return &SetbenchError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new SetbenchError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *SetbenchError {
	return &SetbenchError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *SetbenchError) WithDetails(details map[string]interface{}) *SetbenchError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var se *SetbenchError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a SetbenchError.
func GetCategory(err error) ErrorCategory {
	var se *SetbenchError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a SetbenchError.
func GetCode(err error) string {
	var se *SetbenchError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsNotFound reports whether err is a store NOT_FOUND.
func IsNotFound(err error) bool {
	return GetCode(err) == CodeNotFound
}

// IsInvalidConfiguration reports whether err rejects caller-supplied configuration.
func IsInvalidConfiguration(err error) bool {
	return GetCode(err) == CodeInvalidConfiguration
}

// IsInsufficientData reports whether err is the empty-dataset benchmark result.
func IsInsufficientData(err error) bool {
	return GetCode(err) == CodeInsufficientData
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStore && code == CodeQueryFailed:
		return true
	case category == ErrCategoryExport && code == CodeUploadFailed:
		return true
	case category == ErrCategoryExport && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *SetbenchError {
	return New(ErrCategoryValidation, code, message)
}

func NewConfigurationError(message string) *SetbenchError {
	return New(ErrCategoryValidation, CodeInvalidConfiguration, message)
}

func NewNotFoundError(message string) *SetbenchError {
	return New(ErrCategoryStore, CodeNotFound, message)
}

func NewStoreError(code, message string, cause error) *SetbenchError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewInsufficientDataError(message string) *SetbenchError {
	return New(ErrCategoryBenchmark, CodeInsufficientData, message)
}

func NewExportError(code, message string, cause error) *SetbenchError {
	return Wrap(ErrCategoryExport, code, message, cause)
}

func NewInternalError(message string, cause error) *SetbenchError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}

func NewInvariantError(message string) *SetbenchError {
	return New(ErrCategoryInternal, CodeInvariantViolation, message)
}
