// Package token issues and validates signed registration tokens.
//
// A token is a self-contained bearer credential: its claims are signed
// with HMAC-SHA-256 under a shared secret, so validation never needs a
// lookup against server state. Whether the component behind a token is
// still registered is a separate question answered by the registration
// manager; an unexpired token for a deregistered component still
// verifies cryptographically.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrMalformed    = errors.New("malformed token")
	ErrExpired      = errors.New("token expired")
	ErrBadSignature = errors.New("signature mismatch")
	ErrNoSecret     = errors.New("signing secret required")
	ErrNoComponent  = errors.New("component id required")
)

// Claims are the signed contents of a token. Fields are declared in
// sorted key order so json.Marshal produces the canonical serialization
// the signature is computed over.
type Claims struct {
	ComponentID string `json:"component_id"`
	ExpiresAt   int64  `json:"exp"`
	IssuedAt    int64  `json:"iat"`
	TokenID     string `json:"token_id"`
}

// Expired reports whether the claims are past their expiry at t.
func (c *Claims) Expired(t time.Time) bool {
	return t.Unix() > c.ExpiresAt
}

// wireToken is the on-the-wire shape: canonical payload plus hex
// HMAC-SHA-256 signature.
type wireToken struct {
	Payload Claims `json:"payload"`
	Signature string `json:"signature"`
}

// Generate issues a signed token for a component. Each call mints a
// fresh token id. A zero or negative ttl produces an already-expired
// token; generation itself never fails for that.
func Generate(componentID, secret string, ttl time.Duration) (string, error) {
	if componentID == "" {
		return "", ErrNoComponent
	}
	if secret == "" {
		return "", ErrNoSecret
	}

	now := time.Now().UTC()
	claims := Claims{
		ComponentID: componentID,
		ExpiresAt:   now.Add(ttl).Unix(),
		IssuedAt:    now.Unix(),
		TokenID:     uuid.NewString(),
	}

	sig, err := sign(claims, secret)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(wireToken{Payload: claims, Signature: sig})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Validate parses a wire token and returns its claims if, and only if,
// the token is unexpired and the signature matches a fresh
// recomputation under the given secret. Expiry and signature mismatch
// are independent rejection reasons; expiry is checked first.
func Validate(tokenString, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}

	var wire wireToken
	if err := json.Unmarshal([]byte(tokenString), &wire); err != nil {
		return nil, ErrMalformed
	}
	if wire.Payload.ComponentID == "" || wire.Signature == "" {
		return nil, ErrMalformed
	}

	if wire.Payload.Expired(time.Now().UTC()) {
		return nil, ErrExpired
	}

	expected, err := sign(wire.Payload, secret)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(expected), []byte(wire.Signature)) {
		return nil, ErrBadSignature
	}

	claims := wire.Payload
	return &claims, nil
}

// sign computes the hex HMAC-SHA-256 of the canonical claims bytes.
func sign(claims Claims, secret string) (string, error) {
	canonical, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}
