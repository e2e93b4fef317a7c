package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

// ============================================================================
// 1. Error creation with different codes/categories
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         ErrorCode
		message      string
		wantCategory ErrorCategory
	}{
		{"timeout", ErrCodeTimeout, "operation timed out", CategoryTransient},
		{"not_found", ErrCodeNotFound, "component not found", CategoryPermanent},
		{"unauthorized", ErrCodeUnauthorized, "bad signature", CategoryPermanent},
		{"token_expired", ErrCodeTokenExpired, "token expired", CategoryPermanent},
		{"internal", ErrCodeInternal, "internal error", CategoryInternal},
		{"panic", ErrCodePanic, "recovered", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
			if err.Timestamp().IsZero() {
				t.Error("Timestamp() should not be zero")
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(ErrCodeNotFound, "component %s not found", "athena")
	want := "component athena not found"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestFromCode(t *testing.T) {
	err := FromCode(ErrCodeTimeout)
	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want %v", err.Code(), ErrCodeTimeout)
	}
	// Should use the default description
	if err.Error() != "operation timed out" {
		t.Errorf("Error() = %v, want %v", err.Error(), "operation timed out")
	}
}

// ============================================================================
// 2. Retryable vs non-retryable errors
// ============================================================================

func TestRetryable(t *testing.T) {
	if !Timeout("slow").Retryable() {
		t.Error("timeout should be retryable by default")
	}
	if Unauthorized("bad sig").Retryable() {
		t.Error("unauthorized should not be retryable")
	}
	if TokenExpired("stale").Retryable() {
		t.Error("token expiry should not be retryable")
	}

	// Explicit override wins over the category default
	err := Timeout("slow", WithRetryable(false))
	if err.Retryable() {
		t.Error("explicit retryable=false should override")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(Timeout("slow")) {
		t.Error("IsRetryable should be true for timeout")
	}
	if IsRetryable(errors.New("plain error")) {
		t.Error("IsRetryable should be false for non-CoreError")
	}
	if IsRetryable(nil) {
		t.Error("IsRetryable should be false for nil")
	}
}

// ============================================================================
// 3. Wrapping and unwrapping
// ============================================================================

func TestWrap(t *testing.T) {
	base := Unauthorized("signature mismatch", WithComponentID("hermes"))
	wrapped := Wrap(base, "revocation rejected")

	if wrapped.Code() != ErrCodeUnauthorized {
		t.Errorf("Code() = %v, want UNAUTHORIZED", wrapped.Code())
	}
	if wrapped.ComponentID() != "hermes" {
		t.Errorf("ComponentID() = %v, want hermes", wrapped.ComponentID())
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error should match base via errors.Is")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "no-op") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapContextErrors(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, "waiting for response")
	if err.Code() != ErrCodeTimeout {
		t.Errorf("Code() = %v, want TIMEOUT", err.Code())
	}

	err = Wrap(context.Canceled, "waiting for response")
	if err.Code() != ErrCodeCanceled {
		t.Errorf("Code() = %v, want CANCELED", err.Code())
	}
}

func TestWrapWithCode(t *testing.T) {
	base := fmt.Errorf("connection refused")
	err := WrapWithCode(base, ErrCodeUnavailable, "bus connect failed")
	if err.Code() != ErrCodeUnavailable {
		t.Errorf("Code() = %v, want UNAVAILABLE", err.Code())
	}
	if !errors.Is(err, base) {
		t.Error("cause should be preserved")
	}
}

func TestIs(t *testing.T) {
	err := Wrap(NotFound("gone"), "lookup failed")
	if !Is(err, ErrCodeNotFound) {
		t.Error("Is should match NOT_FOUND through the chain")
	}
	if Is(err, ErrCodeTimeout) {
		t.Error("Is should not match a different code")
	}
	if Is(errors.New("plain"), ErrCodeNotFound) {
		t.Error("Is should be false for non-CoreError")
	}
}

// ============================================================================
// 4. JSON round trip
// ============================================================================

func TestJSONRoundTrip(t *testing.T) {
	orig := New(ErrCodeInvalidInput, "missing endpoint",
		WithComponentID("engram"),
		WithMetadata("field", "endpoint"),
	)

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded Error
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if decoded.Code() != ErrCodeInvalidInput {
		t.Errorf("Code() = %v, want INVALID_INPUT", decoded.Code())
	}
	if decoded.ComponentID() != "engram" {
		t.Errorf("ComponentID() = %v, want engram", decoded.ComponentID())
	}
	if decoded.Metadata()["field"] != "endpoint" {
		t.Error("metadata should survive the round trip")
	}
}

// ============================================================================
// 5. Category helpers
// ============================================================================

func TestCategoryHelpers(t *testing.T) {
	if Code(errors.New("plain")) != "" {
		t.Error("Code should be empty for non-CoreError")
	}
	if Code(Timeout("t")) != ErrCodeTimeout {
		t.Error("Code should extract TIMEOUT")
	}
	if Category(Timeout("t")) != CategoryTransient {
		t.Error("Category should extract transient")
	}
	if !IsCategory(Internal("boom"), CategoryInternal) {
		t.Error("IsCategory should match internal")
	}
}
