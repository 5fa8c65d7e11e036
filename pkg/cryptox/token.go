package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// KeySize is the byte length of generated sealing keys.
const KeySize = 32

// GenerateKey returns size random bytes encoded base64url without padding.
// The shell uses it to mint sealing key material for the token store.
func GenerateKey(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("key size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint returns a short, deterministic SHA-256 fingerprint of a bearer
// token. Logs carry the fingerprint so sessions can be correlated without the
// credential ever reaching log output.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:12]
}
