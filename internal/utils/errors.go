package utils

import (
	"fmt"

	"github.com/dl-alexandre/ghimg/internal/types"
)

// Exit codes
const (
	ExitSuccess = 0
	// Auth errors (10-19)
	ExitAuthRequired = 10
	ExitAuthExpired  = 11
	// Remote store errors (20-29)
	ExitFileNotFound     = 20
	ExitPermissionDenied = 21
	ExitConflict         = 22
	// Network errors (30-39)
	ExitNetworkError = 30
	ExitTimeout      = 31
	ExitRateLimited  = 32
	ExitCancelled    = 33
	// Validation errors (40-49)
	ExitInvalidArgument = 40
	ExitInvalidPath     = 41
	ExitInvalidFilter   = 42
	ExitNoTasks         = 43
	// Batch errors
	ExitBatchPartialFailure = 60
	ExitAllItemsFailed      = 61
	// Unknown
	ExitUnknown = 99
)

// Error codes (tool-owned, stable)
const (
	ErrCodeAuthRequired        = "AUTH_REQUIRED"
	ErrCodeAuthExpired         = "AUTH_EXPIRED"
	ErrCodeFileNotFound        = "FILE_NOT_FOUND"
	ErrCodePermissionDenied    = "PERMISSION_DENIED"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeNetworkError        = "NETWORK_ERROR"
	ErrCodeTimeout             = "TIMEOUT"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeCancelled           = "CANCELLED"
	ErrCodeInvalidArgument     = "INVALID_ARGUMENT"
	ErrCodeInvalidPath         = "INVALID_PATH"
	ErrCodeInvalidFilter       = "INVALID_FILTER"
	ErrCodeNoTasks             = "NO_TASKS"
	ErrCodeAllItemsFailed      = "ALL_ITEMS_FAILED"
	ErrCodeBatchPartialFailure = "BATCH_PARTIAL_FAILURE"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeUnknown             = "UNKNOWN"
)

// CLIErrorBuilder helps construct CLIError instances
type CLIErrorBuilder struct {
	err types.CLIError
}

// NewCLIError creates a new error builder
func NewCLIError(code, message string) *CLIErrorBuilder {
	return &CLIErrorBuilder{
		err: types.CLIError{
			Code:    code,
			Message: message,
		},
	}
}

func (b *CLIErrorBuilder) WithHTTPStatus(status int) *CLIErrorBuilder {
	b.err.HTTPStatus = status
	return b
}

func (b *CLIErrorBuilder) WithRetryable(retryable bool) *CLIErrorBuilder {
	b.err.Retryable = retryable
	return b
}

func (b *CLIErrorBuilder) WithContext(key string, value interface{}) *CLIErrorBuilder {
	if b.err.Context == nil {
		b.err.Context = make(map[string]interface{})
	}
	b.err.Context[key] = value
	return b
}

func (b *CLIErrorBuilder) Build() types.CLIError {
	return b.err
}

// GetExitCode returns the exit code for an error code
func GetExitCode(errorCode string) int {
	mapping := map[string]int{
		ErrCodeAuthRequired:        ExitAuthRequired,
		ErrCodeAuthExpired:         ExitAuthExpired,
		ErrCodeFileNotFound:        ExitFileNotFound,
		ErrCodePermissionDenied:    ExitPermissionDenied,
		ErrCodeConflict:            ExitConflict,
		ErrCodeNetworkError:        ExitNetworkError,
		ErrCodeTimeout:             ExitTimeout,
		ErrCodeRateLimited:         ExitRateLimited,
		ErrCodeCancelled:           ExitCancelled,
		ErrCodeInvalidArgument:     ExitInvalidArgument,
		ErrCodeInvalidPath:         ExitInvalidPath,
		ErrCodeInvalidFilter:       ExitInvalidFilter,
		ErrCodeNoTasks:             ExitNoTasks,
		ErrCodeAllItemsFailed:      ExitAllItemsFailed,
		ErrCodeBatchPartialFailure: ExitBatchPartialFailure,
	}
	if code, ok := mapping[errorCode]; ok {
		return code
	}
	return ExitUnknown
}

// AppError is a custom error type that carries CLI error info
type AppError struct {
	CLIError types.CLIError
	Cause    error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.CLIError.Code, e.CLIError.Message)
}

// Unwrap exposes the classified domain error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates an AppError from a CLIError
func NewAppError(cliErr types.CLIError) *AppError {
	return &AppError{CLIError: cliErr}
}

// WrapAppError creates an AppError that keeps the original error in its chain
func WrapAppError(cliErr types.CLIError, cause error) *AppError {
	return &AppError{CLIError: cliErr, Cause: cause}
}
