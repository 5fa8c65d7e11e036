package store

import (
	"context"
	"fmt"

	"github.com/mymindmap/shell/internal/shell/domain"
)

// Sealer encrypts values for storage at rest. *cryptox.Sealer implements it.
type Sealer interface {
	Seal(plaintext, associated string) (string, error)
	Open(sealed, associated string) (string, error)
}

type sealedTokens struct {
	inner      Tokens
	sealer     Sealer
	associated string
}

// NewSealedTokens wraps a token repository so only sealed values reach it.
// The storage key is bound as associated data.
func NewSealedTokens(inner Tokens, sealer Sealer, storageKey string) Tokens {
	return &sealedTokens{inner: inner, sealer: sealer, associated: storageKey}
}

func (s *sealedTokens) Persist(ctx context.Context, token domain.Token) error {
	if err := CheckPersistable(token); err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(token.Value, s.associated)
	if err != nil {
		return fmt.Errorf("store: seal token: %w", err)
	}
	return s.inner.Persist(ctx, domain.Token{Value: sealed, ExpiresAt: token.ExpiresAt})
}

func (s *sealedTokens) Load(ctx context.Context) (domain.Token, error) {
	token, err := s.inner.Load(ctx)
	if err != nil {
		return domain.Token{}, err
	}
	plain, err := s.sealer.Open(token.Value, s.associated)
	if err != nil {
		return domain.Token{}, fmt.Errorf("store: open token: %w", err)
	}
	return domain.Token{Value: plain, ExpiresAt: token.ExpiresAt}, nil
}

func (s *sealedTokens) Clear(ctx context.Context) error { return s.inner.Clear(ctx) }
