package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a CoreError, it wraps it with the new message.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	// If it's already a CoreError, preserve its properties
	var coreErr *Error
	if errors.As(err, &coreErr) {
		wrapped := &Error{
			code:        coreErr.code,
			category:    coreErr.category,
			message:     message,
			cause:       err,
			metadata:    coreErr.Metadata(),
			retryable:   coreErr.retryable,
			componentID: coreErr.componentID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	// Check for context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	// Default to internal error for unknown errors
	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsCoreError attempts to extract a CoreError from an error chain.
// Returns nil if no CoreError is found.
func AsCoreError(err error) CoreError {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.Retryable()
	}
	// Default to not retryable for non-CoreErrors
	return false
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not a CoreError.
func Code(err error) ErrorCode {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.code
	}
	return ""
}

// Category extracts the error category from an error, if available.
// Returns empty string if err is not a CoreError.
func Category(err error) ErrorCategory {
	var coreErr *Error
	if errors.As(err, &coreErr) {
		return coreErr.category
	}
	return ""
}
