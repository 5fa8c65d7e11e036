// Package memory is an ephemeral store driver. Nothing survives a restart;
// it backs tests and the "memory" storage mode.
package memory

import (
	"context"
	"sync"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/store"
)

type Store struct {
	mu     sync.RWMutex
	token  *domain.Token
	locale string
}

func NewStore() *Store { return &Store{} }

func (s *Store) Tokens() store.Tokens           { return (*tokensRepo)(s) }
func (s *Store) Preferences() store.Preferences { return (*preferencesRepo)(s) }

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return nil }

type tokensRepo Store

func (r *tokensRepo) Persist(ctx context.Context, token domain.Token) error {
	if err := store.CheckPersistable(token); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t := token
	r.token = &t
	return nil
}

func (r *tokensRepo) Load(ctx context.Context) (domain.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.token == nil {
		return domain.Token{}, store.ErrNotFound
	}
	return *r.token, nil
}

func (r *tokensRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = nil
	return nil
}

type preferencesRepo Store

func (r *preferencesRepo) Locale(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.locale == "" {
		return "", store.ErrNotFound
	}
	return r.locale, nil
}

func (r *preferencesRepo) SetLocale(ctx context.Context, locale string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locale = locale
	return nil
}
