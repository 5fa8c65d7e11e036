package domain

import "time"

// Token is the session credential: an opaque bearer value and the absolute
// instant it stops being valid.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Valid reports whether the token may be used at now. A token with no value,
// no expiry, or an expiry at or before now is never valid.
func (t Token) Valid(now time.Time) bool {
	if t.Value == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt)
}

// IsZero reports whether no credential is held.
func (t Token) IsZero() bool { return t.Value == "" && t.ExpiresAt.IsZero() }
