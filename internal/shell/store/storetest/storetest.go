// Package storetest holds the behaviour every store driver must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/store"
	"github.com/stretchr/testify/require"
)

// RunTokens exercises a Tokens implementation. newTokens must return an
// empty repository on every call.
func RunTokens(t *testing.T, newTokens func(t *testing.T) store.Tokens) {
	t.Helper()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Truncate(time.Millisecond)

	t.Run("load empty", func(t *testing.T) {
		tokens := newTokens(t)
		_, err := tokens.Load(ctx)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("persist then load", func(t *testing.T) {
		tokens := newTokens(t)
		require.NoError(t, tokens.Persist(ctx, domain.Token{Value: "abc", ExpiresAt: exp}))

		got, err := tokens.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "abc", got.Value)
		require.True(t, exp.Equal(got.ExpiresAt), "want %v got %v", exp, got.ExpiresAt)
	})

	t.Run("persist overwrites", func(t *testing.T) {
		tokens := newTokens(t)
		require.NoError(t, tokens.Persist(ctx, domain.Token{Value: "first", ExpiresAt: exp}))
		later := exp.Add(time.Hour)
		require.NoError(t, tokens.Persist(ctx, domain.Token{Value: "second", ExpiresAt: later}))

		got, err := tokens.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "second", got.Value)
		require.True(t, later.Equal(got.ExpiresAt))
	})

	t.Run("rejects missing expiry", func(t *testing.T) {
		tokens := newTokens(t)
		err := tokens.Persist(ctx, domain.Token{Value: "abc"})
		require.ErrorIs(t, err, store.ErrMissingExpiry)

		_, err = tokens.Load(ctx)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("rejected persist keeps previous value", func(t *testing.T) {
		tokens := newTokens(t)
		require.NoError(t, tokens.Persist(ctx, domain.Token{Value: "kept", ExpiresAt: exp}))
		require.Error(t, tokens.Persist(ctx, domain.Token{Value: "dropped"}))

		got, err := tokens.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "kept", got.Value)
	})

	t.Run("clear", func(t *testing.T) {
		tokens := newTokens(t)
		require.NoError(t, tokens.Persist(ctx, domain.Token{Value: "abc", ExpiresAt: exp}))
		require.NoError(t, tokens.Clear(ctx))
		require.NoError(t, tokens.Clear(ctx), "clearing twice is fine")

		_, err := tokens.Load(ctx)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

// RunPreferences exercises a Preferences implementation.
func RunPreferences(t *testing.T, newPrefs func(t *testing.T) store.Preferences) {
	t.Helper()
	ctx := context.Background()

	prefs := newPrefs(t)
	_, err := prefs.Locale(ctx)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, prefs.SetLocale(ctx, "ru"))
	require.NoError(t, prefs.SetLocale(ctx, "en"))

	locale, err := prefs.Locale(ctx)
	require.NoError(t, err)
	require.Equal(t, "en", locale)
}
