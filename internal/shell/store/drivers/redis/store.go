// Package redis stores the session credential in Redis, for kiosk and
// thin-client profiles where several shells share one device store.
package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/store"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the shell.
const DefaultPrefix = "mindmap-shell"

const (
	fieldToken   = "token"
	fieldExpires = "expires_at"
	fieldLocale  = "locale"
)

type Store struct {
	rdb      redis.UniversalClient
	tokenKey string
	prefsKey string
}

// NewStore scopes all keys under prefix and storageKey. Empty values fall
// back to DefaultPrefix and store.DefaultStorageKey.
func NewStore(rdb redis.UniversalClient, prefix, storageKey string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if storageKey == "" {
		storageKey = store.DefaultStorageKey
	}
	return &Store{
		rdb:      rdb,
		tokenKey: fmt.Sprintf("%s:token:%s", prefix, storageKey),
		prefsKey: fmt.Sprintf("%s:prefs:%s", prefix, storageKey),
	}
}

func (s *Store) Tokens() store.Tokens           { return &tokensRepo{s: s} }
func (s *Store) Preferences() store.Preferences { return &preferencesRepo{s: s} }

// ApplyMigrations is a no-op; redis is schemaless.
func (s *Store) ApplyMigrations() error { return nil }

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

type tokensRepo struct{ s *Store }

// Persist replaces the token hash inside MULTI/EXEC. The key also expires in
// redis at the token's expiry so stale credentials do not linger.
func (r *tokensRepo) Persist(ctx context.Context, token domain.Token) error {
	if err := store.CheckPersistable(token); err != nil {
		return err
	}
	_, err := r.s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.s.tokenKey)
		pipe.HSet(ctx, r.s.tokenKey,
			fieldToken, token.Value,
			fieldExpires, store.FormatExpiry(token.ExpiresAt),
		)
		pipe.PExpireAt(ctx, r.s.tokenKey, token.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: persist token: %w", err)
	}
	return nil
}

func (r *tokensRepo) Load(ctx context.Context) (domain.Token, error) {
	vals, err := r.s.rdb.HMGet(ctx, r.s.tokenKey, fieldToken, fieldExpires).Result()
	if err != nil {
		return domain.Token{}, fmt.Errorf("redis: load token: %w", err)
	}
	value, _ := vals[0].(string)
	expiresAt, _ := vals[1].(string)
	return store.DecodeToken(value, expiresAt)
}

func (r *tokensRepo) Clear(ctx context.Context) error {
	if err := r.s.rdb.Del(ctx, r.s.tokenKey).Err(); err != nil {
		return fmt.Errorf("redis: clear token: %w", err)
	}
	return nil
}

type preferencesRepo struct{ s *Store }

func (r *preferencesRepo) Locale(ctx context.Context) (string, error) {
	locale, err := r.s.rdb.HGet(ctx, r.s.prefsKey, fieldLocale).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis: load locale: %w", err)
	}
	return locale, nil
}

func (r *preferencesRepo) SetLocale(ctx context.Context, locale string) error {
	if err := r.s.rdb.HSet(ctx, r.s.prefsKey, fieldLocale, locale).Err(); err != nil {
		return fmt.Errorf("redis: set locale: %w", err)
	}
	return nil
}
