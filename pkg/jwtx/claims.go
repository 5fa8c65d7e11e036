package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when a token carries no usable "exp" claim.
var ErrNoExpiry = errors.New("jwtx: token has no expiry claim")

// Claims is the subset of access-token claims the shell reads. The identity
// service may add fields; unknown ones are ignored.
type Claims struct {
	jwt.RegisteredClaims
}

// parser never validates: the shell holds no verification key, so signature
// and time checks belong to the identity service. We only read "exp".
var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// ParseUnverified decodes the claims of a compact JWT without verifying it.
// Callers must never use the result for authorization decisions.
func ParseUnverified(token string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("jwtx: parse token: %w", err)
	}
	return claims, nil
}

// ExpiryOf returns the absolute expiry encoded in the token's "exp" claim.
// Opaque (non-JWT) tokens and tokens without "exp" report ErrNoExpiry.
func ExpiryOf(token string) (time.Time, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return time.Time{}, errors.Join(ErrNoExpiry, err)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}
