// Package errors provides a structured error taxonomy for the coordination
// core. It defines the error codes and categories that registration,
// registry, and bus operations use to report failures consistently.
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Transient: Temporary failures where retry may succeed (response timeout, etc.)
//   - Permanent: Failures where retry will not help (invalid payload, bad token, etc.)
//   - Internal: Unexpected errors indicating bugs or system failures
//
// # Error Codes
//
// Each error has a specific code that identifies the type of failure:
//
//   - TIMEOUT: Operation timed out
//   - NOT_FOUND: Component or service not found
//   - INVALID_INPUT: Malformed or incomplete payload
//   - UNAUTHORIZED: Token signature mismatch
//   - TOKEN_EXPIRED: Token past its expiry
//   - And more...
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.ErrCodeTimeout, "registration timed out")
//
// Wrap an existing error with context:
//
//	wrapped := errors.Wrap(err, "handling registration request")
//
// Check if an error is retryable:
//
//	if coreErr := errors.AsCoreError(err); coreErr != nil && coreErr.Retryable() {
//	    // retry logic
//	}
//
// # JSON Serialization
//
// All errors support JSON serialization for cross-component communication:
//
//	data, err := json.Marshal(coreErr)
//
// Errors can be deserialized back:
//
//	var coreErr errors.Error
//	json.Unmarshal(data, &coreErr)
package errors
