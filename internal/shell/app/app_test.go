package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mymindmap/shell/pkg/identity"
	"github.com/mymindmap/shell/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// fakeIdentityServer accepts one account and issues "tok-1".
func fakeIdentityServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds identity.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"These credentials do not match our records."}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      "tok-1",
			"expires_at": time.Now().Add(time.Hour).UnixMilli(),
		})
	})
	mux.HandleFunc("GET /auth/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"user": map[string]any{
			"id": 1, "name": "Ada", "email": "ada@example.com", "role_id": 3, "status_id": 2, "lang": "ru",
		}})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(srv *httptest.Server) Config {
	return Config{
		IdentityURL:         srv.URL + "/auth",
		TokenStore:          "memory",
		StorageKey:          "session",
		HTTPTimeout:         5 * time.Second,
		ExpiryCheckInterval: time.Hour,
		ValidateRequests:    true,
		LandingRoute:        "/",
		LoginRoute:          "/login",
	}
}

func TestApplicationLifecycle(t *testing.T) {
	srv := fakeIdentityServer(t)
	ctx := context.Background()

	app, err := NewWithLogger(testConfig(srv), slogx.Discard())
	require.NoError(t, err)
	require.NoError(t, app.Start(ctx))
	defer func() { require.NoError(t, app.Shutdown()) }()

	// Signed out: protected routes land on login
	require.NoError(t, app.Router().Navigate(ctx, "/edit/5"))
	m, _ := app.Router().Current()
	require.Equal(t, "login", m.Route.Name)

	require.Error(t, app.Session().Login(ctx, identity.Credentials{Email: "ada@example.com", Password: "wrong"}))
	require.False(t, app.Session().IsAuthenticated())

	require.NoError(t, app.Session().Login(ctx, identity.Credentials{Email: "ada@example.com", Password: "secret"}))
	require.True(t, app.Session().IsAuthenticated())
	m, _ = app.Router().Current()
	require.Equal(t, "home", m.Route.Name)
	require.Equal(t, "ru", app.locale.CurrentLocale(ctx))

	require.NoError(t, app.Router().Navigate(ctx, "/edit/5"))
	m, _ = app.Router().Current()
	require.Equal(t, "edit-map", m.Route.Name)

	// The login page bounces a live session
	require.NoError(t, app.Router().Navigate(ctx, "/login"))
	m, _ = app.Router().Current()
	require.Equal(t, "home", m.Route.Name)

	require.NoError(t, app.Session().Logout(ctx))
	require.False(t, app.Session().IsAuthenticated())
	m, _ = app.Router().Current()
	require.Equal(t, "login", m.Route.Name)
}

func TestApplicationRestoresSessionFromSQLite(t *testing.T) {
	srv := fakeIdentityServer(t)
	ctx := context.Background()

	cfg := testConfig(srv)
	cfg.TokenStore = "sqlite"
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "shell.db")
	cfg.TokenKey = "test-sealing-key"

	first, err := NewWithLogger(cfg, slogx.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx))
	require.NoError(t, first.Session().Login(ctx, identity.Credentials{Email: "ada@example.com", Password: "secret"}))

	// Only the sealed value reaches the database
	raw, err := first.db.Tokens().Load(ctx)
	require.NoError(t, err)
	require.NotEqual(t, "tok-1", raw.Value)
	require.NoError(t, first.Shutdown())

	second, err := NewWithLogger(cfg, slogx.Discard())
	require.NoError(t, err)
	require.NoError(t, second.Start(ctx))
	defer func() { require.NoError(t, second.Shutdown()) }()

	require.True(t, second.Session().IsAuthenticated())
	require.Equal(t, "tok-1", second.Session().EffectiveToken())
	require.Equal(t, "Ada", second.Session().User().Name)
}

func TestNewRejectsUnknownStore(t *testing.T) {
	cfg := Config{TokenStore: "floppy"}
	_, err := NewWithLogger(cfg, slogx.Discard())
	require.Error(t, err)
	require.Contains(t, err.Error(), "floppy")
}

func TestTokenKeyFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "token.key")
	require.NoError(t, os.WriteFile(path, []byte("  material\n"), 0o600))

	app := &Application{cfg: Config{TokenKeyFile: path}}
	key, err := app.tokenKey()
	require.NoError(t, err)
	require.Equal(t, "material", string(key))

	empty := filepath.Join(dir, "empty.key")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	app.cfg.TokenKeyFile = empty
	_, err = app.tokenKey()
	require.Error(t, err)

	// Inline material wins
	app.cfg.TokenKey = "inline"
	key, err = app.tokenKey()
	require.NoError(t, err)
	require.True(t, strings.EqualFold("inline", string(key)))
}
