package ports

import (
	"errors"
	"fmt"
	"time"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrAuthenticationFailed indicates that authentication with the
	// service failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrStoreUnavailable indicates that no tabular store is configured.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// LLMError represents a failed model attempt within a batch.
type LLMError struct {
	// Model is the identifier of the LLM model that generated the error.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Attempt is the 1-based attempt number within the batch.
	Attempt int

	// Err is the underlying error that occurred.
	Err error

	// RetryAfter indicates how long to wait before retrying, if applicable.
	RetryAfter *time.Duration
}

// Error implements the error interface for LLMError.
func (e *LLMError) Error() string {
	msg := fmt.Sprintf("LLM error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
	if e.Attempt > 0 {
		msg += fmt.Sprintf(", attempt=%d", e.Attempt)
	}
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error { return e.Err }

// IsRetryable returns true if the error is temporary.
func (e *LLMError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewLLMError creates a new LLMError with the given details.
func NewLLMError(model, operation string, attempt int, err error) *LLMError {
	return &LLMError{
		Model:     model,
		Operation: operation,
		Attempt:   attempt,
		Err:       err,
	}
}

// StoreError represents a failure persisting rows or reports.
type StoreError struct {
	// Backend names the sink, e.g. "postgres", "csv", "s3".
	Backend string

	// Operation is the store operation that failed.
	Operation string

	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: backend=%s, operation=%s, err=%v", e.Backend, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError with the given details.
func NewStoreError(backend, operation string, err error) *StoreError {
	return &StoreError{Backend: backend, Operation: operation, Err: err}
}

// NotifyError represents a failure delivering an alert.
type NotifyError struct {
	Recipient string
	Stage     string
	Err       error
}

// Error implements the error interface for NotifyError.
func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify error: stage=%s, recipient=%s, err=%v", e.Stage, e.Recipient, e.Err)
}

// Unwrap returns the underlying error.
func (e *NotifyError) Unwrap() error { return e.Err }

// NewNotifyError creates a new NotifyError with the given details.
func NewNotifyError(recipient, stage string, err error) *NotifyError {
	return &NotifyError{Recipient: recipient, Stage: stage, Err: err}
}

// CacheError represents an error from cache operations.
type CacheError struct {
	Key       string
	Operation string
	Err       error
}

// Error implements the error interface for CacheError.
func (e *CacheError) Error() string {
	return fmt.Sprintf("cache error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError creates a new CacheError with the given details.
func NewCacheError(key, operation string, err error) *CacheError {
	return &CacheError{Key: key, Operation: operation, Err: err}
}
