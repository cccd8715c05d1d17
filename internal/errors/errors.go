// Package errors defines the failure taxonomy shared by the search and
// transfer engines and maps it onto tool-owned CLI error codes.
//
// Only whole-operation failures reach callers: a failed search root, an
// invalid filter, an empty transfer request or a batch in which every item
// failed. Branch failures during traversal and per-item transfer failures
// are absorbed by the engines and reported through logs and counters.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoTasks is matched by NoTasksError via errors.Is
var ErrNoTasks = stderrors.New("no transfer tasks")

// ErrAllItemsFailed is matched by AllItemsFailedError via errors.Is
var ErrAllItemsFailed = stderrors.New("all transfer items failed")

// RemoteFetchError is a transport or HTTP-layer failure from a tree client.
// StatusCode is 0 when no response was received.
type RemoteFetchError struct {
	StatusCode int
	Message    string
	Path       string
	Cause      error
	// RetryAfter carries a server-provided backoff hint (Retry-After or
	// rate-limit reset), zero when absent.
	RetryAfter time.Duration
}

func (e *RemoteFetchError) Error() string {
	var sb strings.Builder
	sb.WriteString("remote fetch failed")
	if e.Path != "" {
		sb.WriteString(fmt.Sprintf(" for %s", e.Path))
	}
	if e.StatusCode > 0 {
		sb.WriteString(fmt.Sprintf(" (HTTP %d)", e.StatusCode))
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	} else if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether repeating the request may succeed: no
// response at all, throttling, or a server-side failure.
func (e *RemoteFetchError) IsRetryable() bool {
	switch {
	case e.StatusCode == 0:
		return e.Cause != nil
	case e.StatusCode == 429, e.StatusCode >= 500:
		return true
	case e.StatusCode == 403:
		return strings.Contains(strings.ToLower(e.Message), "rate limit")
	}
	return false
}

// IsNotFound reports whether the remote answered 404
func (e *RemoteFetchError) IsNotFound() bool {
	return e.StatusCode == 404
}

// NewRemoteFetchError builds a RemoteFetchError for path
func NewRemoteFetchError(path string, status int, message string, cause error) *RemoteFetchError {
	return &RemoteFetchError{StatusCode: status, Message: message, Path: path, Cause: cause}
}

// AllItemsFailedError reports a transfer batch without a single success
type AllItemsFailedError struct {
	Failed int
	Total  int
}

func (e *AllItemsFailedError) Error() string {
	return fmt.Sprintf("all %d transfer items failed", e.Total)
}

func (e *AllItemsFailedError) Is(target error) bool {
	return target == ErrAllItemsFailed
}

// NoTasksError rejects a transfer with an empty task list
type NoTasksError struct{}

func (e *NoTasksError) Error() string {
	return ErrNoTasks.Error()
}

func (e *NoTasksError) Is(target error) bool {
	return target == ErrNoTasks
}

// InvalidFilterError reports a self-contradictory or malformed search filter
type InvalidFilterError struct {
	Field  string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter: %s: %s", e.Field, e.Reason)
}

// NewInvalidFilter builds an InvalidFilterError
func NewInvalidFilter(field, format string, args ...interface{}) *InvalidFilterError {
	return &InvalidFilterError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AsRemoteFetch extracts a RemoteFetchError from the chain
func AsRemoteFetch(err error) (*RemoteFetchError, bool) {
	var rf *RemoteFetchError
	if stderrors.As(err, &rf) {
		return rf, true
	}
	return nil, false
}

// IsInvalidFilter reports whether err is an InvalidFilterError
func IsInvalidFilter(err error) bool {
	var f *InvalidFilterError
	return stderrors.As(err, &f)
}
