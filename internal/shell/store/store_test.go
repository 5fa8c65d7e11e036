package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/store"
	"github.com/mymindmap/shell/internal/shell/store/drivers/memory"
	"github.com/mymindmap/shell/internal/shell/store/storetest"
	"github.com/mymindmap/shell/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	t.Parallel()

	exp := time.UnixMilli(1760443200123)
	got, err := store.ParseExpiry(store.FormatExpiry(exp))
	require.NoError(t, err)
	require.True(t, exp.Equal(got))

	for _, bad := range []string{"", "soon", "0", "-5"} {
		_, err := store.ParseExpiry(bad)
		require.ErrorIs(t, err, store.ErrMissingExpiry, bad)
	}
}

func TestDecodeToken(t *testing.T) {
	_, err := store.DecodeToken("abc", "")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = store.DecodeToken("", "1760443200123")
	require.ErrorIs(t, err, store.ErrNotFound)

	tok, err := store.DecodeToken("abc", "1760443200123")
	require.NoError(t, err)
	require.Equal(t, "abc", tok.Value)
}

func TestSealedTokens(t *testing.T) {
	sealer, err := cryptox.NewSealer([]byte("test-key"))
	require.NoError(t, err)

	storetest.RunTokens(t, func(t *testing.T) store.Tokens {
		return store.NewSealedTokens(memory.NewStore().Tokens(), sealer, store.DefaultStorageKey)
	})
}

func TestSealedTokensStoresCiphertext(t *testing.T) {
	ctx := context.Background()
	sealer, err := cryptox.NewSealer([]byte("test-key"))
	require.NoError(t, err)

	inner := memory.NewStore().Tokens()
	sealed := store.NewSealedTokens(inner, sealer, store.DefaultStorageKey)

	exp := time.Now().Add(time.Hour)
	require.NoError(t, sealed.Persist(ctx, domain.Token{Value: "bearer-value", ExpiresAt: exp}))

	raw, err := inner.Load(ctx)
	require.NoError(t, err)
	require.NotEqual(t, "bearer-value", raw.Value)

	// A different key must not be able to read the slot
	otherSealer, err := cryptox.NewSealer([]byte("other-key"))
	require.NoError(t, err)
	_, err = store.NewSealedTokens(inner, otherSealer, store.DefaultStorageKey).Load(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrNotFound)
}
