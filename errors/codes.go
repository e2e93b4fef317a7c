package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: registration response timeout, bus temporarily closed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: invalid registration payload, bad token signature.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or system failures.
	// Examples: recovered subscriber panic, corrupted state.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

// Error codes for common failure scenarios.
const (
	// Transient errors
	ErrCodeTimeout     ErrorCode = "TIMEOUT"     // Operation timed out
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Bus or registry unavailable

	// Permanent errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"      // Component or service does not exist
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"  // Malformed or incomplete payload
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"   // Token signature mismatch
	ErrCodeTokenExpired  ErrorCode = "TOKEN_EXPIRED"  // Token past its expiry
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS" // Duplicate registration
	ErrCodeCanceled      ErrorCode = "CANCELED"       // Operation was canceled

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
	ErrCodePanic    ErrorCode = "PANIC"    // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeUnavailable:
		return CategoryTransient

	case ErrCodeNotFound, ErrCodeInvalidInput, ErrCodeUnauthorized,
		ErrCodeTokenExpired, ErrCodeAlreadyExists, ErrCodeCanceled:
		return CategoryPermanent

	case ErrCodeInternal, ErrCodePanic:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// Description returns a human-readable description for the code.
func (c ErrorCode) Description() string {
	switch c {
	case ErrCodeTimeout:
		return "operation timed out"
	case ErrCodeUnavailable:
		return "service unavailable"
	case ErrCodeNotFound:
		return "not found"
	case ErrCodeInvalidInput:
		return "invalid input"
	case ErrCodeUnauthorized:
		return "unauthorized"
	case ErrCodeTokenExpired:
		return "token expired"
	case ErrCodeAlreadyExists:
		return "already exists"
	case ErrCodeCanceled:
		return "canceled"
	case ErrCodePanic:
		return "recovered from panic"
	default:
		return "internal error"
	}
}
