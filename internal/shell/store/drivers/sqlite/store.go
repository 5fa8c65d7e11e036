package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/store"
	_ "modernc.org/sqlite"
)

// Store is the durable client-side store. It keeps one credential row and a
// handful of preference rows per storage key.
type Store struct {
	db  *sql.DB
	key string
	dsn string
	now func() time.Time
}

// NewStore opens the database at dsn. Rows are scoped to storageKey, which
// defaults to store.DefaultStorageKey when empty.
func NewStore(dsn, storageKey string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	if storageKey == "" {
		storageKey = store.DefaultStorageKey
	}

	return &Store{
		db:  db,
		key: storageKey,
		dsn: dsn,
		now: time.Now,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Tokens() store.Tokens           { return &tokensRepo{s: s} }
func (s *Store) Preferences() store.Preferences { return &preferencesRepo{s: s} }

type tokensRepo struct{ s *Store }

const upsertToken = `
INSERT INTO session_tokens (storage_key, token, expires_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(storage_key) DO UPDATE SET
    token      = excluded.token,
    expires_at = excluded.expires_at,
    updated_at = excluded.updated_at`

// Persist writes token and expiry in a single statement, so a reader never
// sees one half of the pair without the other.
func (r *tokensRepo) Persist(ctx context.Context, token domain.Token) error {
	if err := store.CheckPersistable(token); err != nil {
		return err
	}
	_, err := r.s.db.ExecContext(ctx, upsertToken,
		r.s.key,
		token.Value,
		store.FormatExpiry(token.ExpiresAt),
		r.s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: persist token: %w", err)
	}
	return nil
}

func (r *tokensRepo) Load(ctx context.Context) (domain.Token, error) {
	var value, expiresAt string
	err := r.s.db.QueryRowContext(ctx,
		`SELECT token, expires_at FROM session_tokens WHERE storage_key = ?`,
		r.s.key,
	).Scan(&value, &expiresAt)
	if err != nil {
		return domain.Token{}, mapNotFound(err)
	}
	return store.DecodeToken(value, expiresAt)
}

func (r *tokensRepo) Clear(ctx context.Context) error {
	_, err := r.s.db.ExecContext(ctx, `DELETE FROM session_tokens WHERE storage_key = ?`, r.s.key)
	if err != nil {
		return fmt.Errorf("sqlite: clear token: %w", err)
	}
	return nil
}

type preferencesRepo struct{ s *Store }

const prefLocale = "locale"

func (r *preferencesRepo) Locale(ctx context.Context) (string, error) {
	var value string
	err := r.s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE storage_key = ? AND name = ?`,
		r.s.key, prefLocale,
	).Scan(&value)
	if err != nil {
		return "", mapNotFound(err)
	}
	return value, nil
}

func (r *preferencesRepo) SetLocale(ctx context.Context, locale string) error {
	_, err := r.s.db.ExecContext(ctx, `
INSERT INTO preferences (storage_key, name, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(storage_key, name) DO UPDATE SET
    value      = excluded.value,
    updated_at = excluded.updated_at`,
		r.s.key, prefLocale, locale, r.s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set locale: %w", err)
	}
	return nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}
