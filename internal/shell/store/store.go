package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mymindmap/shell/internal/shell/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrMissingExpiry = errors.New("store: token has no expiry")
)

// DefaultStorageKey is the fixed slot the session credential lives under.
const DefaultStorageKey = "session"

// Store is the root client-side persistence interface. Drivers (sqlite,
// redis, memory) implement it and expose sub-repositories so callers only
// see the slice of storage they need.
type Store interface {
	Tokens() Tokens
	Preferences() Preferences

	// ApplyMigrations prepares the schema. No-op for schemaless drivers.
	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error
}

// Tokens persists the session credential across process restarts.
type Tokens interface {
	// Persist overwrites the stored token and expiry as one unit. Tokens
	// without an expiry are rejected with ErrMissingExpiry.
	Persist(ctx context.Context, token domain.Token) error

	// Load returns the stored token. A missing token, or one whose expiry is
	// absent or unreadable, reports ErrNotFound. Expired tokens are returned
	// as stored; validity is the caller's decision.
	Load(ctx context.Context) (domain.Token, error)

	// Clear removes the stored token. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}

// Preferences persists small per-device settings.
type Preferences interface {
	// Locale returns the applied locale, or ErrNotFound.
	Locale(ctx context.Context) (string, error)
	SetLocale(ctx context.Context, locale string) error
}

// FormatExpiry renders an expiry in the persisted layout: unix milliseconds.
func FormatExpiry(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// ParseExpiry reads the persisted layout. Empty, malformed and non-positive
// values report ErrMissingExpiry.
func ParseExpiry(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrMissingExpiry
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, ErrMissingExpiry
	}
	return time.UnixMilli(ms), nil
}

// CheckPersistable rejects tokens that must never reach storage.
func CheckPersistable(token domain.Token) error {
	if token.Value == "" {
		return errors.New("store: empty token value")
	}
	if token.ExpiresAt.IsZero() || token.ExpiresAt.UnixMilli() <= 0 {
		return ErrMissingExpiry
	}
	return nil
}

// DecodeToken rebuilds a token from its persisted strings, mapping any
// missing half of the pair to ErrNotFound.
func DecodeToken(value, expiresAt string) (domain.Token, error) {
	if value == "" {
		return domain.Token{}, ErrNotFound
	}
	exp, err := ParseExpiry(expiresAt)
	if err != nil {
		return domain.Token{}, ErrNotFound
	}
	return domain.Token{Value: value, ExpiresAt: exp}, nil
}
