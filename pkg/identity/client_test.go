package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mymindmap/shell/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", opts...)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	expiresAt := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("expires_at in unix milliseconds", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/login", r.URL.Path)
			require.Empty(t, r.Header.Get("Authorization"))

			var body Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "a@b.com", body.Email)
			require.Equal(t, "secret", body.Password)

			writeJSON(w, http.StatusOK, map[string]any{"token": "tok", "expires_at": expiresAt.UnixMilli()})
		})

		grant, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "secret"})
		require.NoError(t, err)
		require.Equal(t, "tok", grant.Token)
		require.True(t, grant.ExpiresAt.Equal(expiresAt))
	})

	t.Run("expires_at as RFC 3339 and access_token name", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok", "expires_at": expiresAt.Format(time.RFC3339)})
		})

		grant, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "secret"})
		require.NoError(t, err)
		require.Equal(t, "tok", grant.Token)
		require.True(t, grant.ExpiresAt.Equal(expiresAt))
	})

	t.Run("expires_in relative to clock", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"token": "tok", "expires_in": 3600})
		}, WithClock(func() time.Time { return now }))

		grant, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "secret"})
		require.NoError(t, err)
		require.Equal(t, now.Add(time.Hour), grant.ExpiresAt)
	})

	t.Run("exp claim of a JWT", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		}).SignedString([]byte("test-key"))
		require.NoError(t, err)

		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"token": token})
		})

		grant, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "secret"})
		require.NoError(t, err)
		require.Equal(t, expiresAt.Unix(), grant.ExpiresAt.Unix())
	})

	t.Run("opaque token without expiry is rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"token": "opaque"})
		})

		_, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "secret"})
		require.ErrorIs(t, err, ErrServer)
	})

	t.Run("bad credentials", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "These credentials do not match our records."})
		})

		_, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "wrong"})
		require.ErrorIs(t, err, ErrUnauthorized)

		var f *Failure
		require.ErrorAs(t, err, &f)
		require.Equal(t, http.StatusUnauthorized, f.StatusCode)
		require.Equal(t, "These credentials do not match our records.", f.Message)
	})

	t.Run("client-side validation skips the request", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		})

		_, err := c.Login(context.Background(), Credentials{Email: "not-an-email"})
		require.ErrorIs(t, err, ErrValidation)

		var f *Failure
		require.ErrorAs(t, err, &f)
		require.Contains(t, f.Fields, "email")
		require.Contains(t, f.Fields, "password")
		require.Zero(t, f.StatusCode)
		require.Zero(t, calls.Load())
	})
}

func TestRegisterValidationFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/register", r.URL.Path)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string][]string{"password": {"too short"}},
		})
	}))
	t.Cleanup(srv.Close)

	// Default options: short values are the service's call, not the client's
	c := NewClient(srv.URL)

	_, err := c.Register(context.Background(), RegisterRequest{Name: "A", Email: "a@b.com", Password: "x"})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, int32(1), calls.Load())

	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Equal(t, http.StatusUnprocessableEntity, f.StatusCode)
	require.Equal(t, map[string][]string{"password": {"too short"}}, f.Fields)
}

func TestRegisterMissingFieldsSkipRequest(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.Register(context.Background(), RegisterRequest{Email: "a@b.com"})
	require.ErrorIs(t, err, ErrValidation)

	var f *Failure
	require.ErrorAs(t, err, &f)
	require.Contains(t, f.Fields, "name")
	require.Contains(t, f.Fields, "password")
	require.NotContains(t, f.Fields, "email")
	require.Zero(t, calls.Load())
}

func TestParseFailure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
		fields  map[string][]string
	}{
		{
			name:    "details map",
			status:  http.StatusBadRequest,
			body:    `{"code":"invalid_request","message":"bad input","details":{"email":"taken"}}`,
			kind:    KindValidation,
			message: "bad input",
			fields:  map[string][]string{"email": {"taken"}},
		},
		{
			name:    "oauth2 shape",
			status:  http.StatusForbidden,
			body:    `{"error":"access_denied","error_description":"nope"}`,
			kind:    KindUnauthorized,
			message: "nope",
		},
		{
			name:    "conflict",
			status:  http.StatusConflict,
			body:    `{"message":"exists","errors":{"email":["already registered"]}}`,
			kind:    KindValidation,
			message: "exists",
			fields:  map[string][]string{"email": {"already registered"}},
		},
		{
			name:    "non-json body",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			kind:    KindServer,
			message: "HTTP 502: Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := parseFailure(tt.status, []byte(tt.body))
			require.Equal(t, tt.kind, f.Kind)
			require.Equal(t, tt.status, f.StatusCode)
			require.Equal(t, tt.message, f.Message)
			require.Equal(t, tt.fields, f.Fields)
		})
	}
}

func TestFetchProfile(t *testing.T) {
	t.Parallel()

	t.Run("wrapped profile with bearer", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodGet, r.Method)
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
				"id": 7, "name": "Ada", "email": "ada@example.com",
				"role_id": 1, "status_id": 2, "data": map[string]any{"lang": "ru"},
				"avatar": "a.png",
			}})
		})

		p, err := c.FetchProfile(context.Background(), StaticToken("tok"))
		require.NoError(t, err)
		require.Equal(t, int64(7), p.ID)
		require.Equal(t, "Ada", p.Name)
		require.Equal(t, 1, p.RoleID)
		require.Equal(t, 2, p.StatusID)
		require.Equal(t, "ru", p.Locale)
		require.Equal(t, "a.png", p.Fields["avatar"])
	})

	t.Run("bare profile with role name", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"id": 3, "email": "m@example.com", "role": "manager", "lang": "en"})
		})

		p, err := c.FetchProfile(context.Background(), StaticToken("tok"))
		require.NoError(t, err)
		require.Equal(t, 3, p.RoleID)
		require.Equal(t, "en", p.Locale)
	})

	t.Run("string ids", func(t *testing.T) {
		const uuid = "0190c3a2-7d4e-7b1a-9f3e-5c2d8a6b4e10"
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{
				"id": uuid, "email": "u@example.com", "role_id": "2",
			}})
		})

		p, err := c.FetchProfile(context.Background(), StaticToken("tok"))
		require.NoError(t, err)
		require.Zero(t, p.ID)
		require.Equal(t, uuid, p.Fields["id"])
		require.Equal(t, 2, p.RoleID)
	})

	t.Run("empty token sends no header", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, present := r.Header["Authorization"]
			require.False(t, present)
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthenticated."})
		})

		_, err := c.FetchProfile(context.Background(), StaticToken(""))
		require.ErrorIs(t, err, ErrUnauthorized)

		_, err = c.FetchProfile(context.Background(), nil)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("server error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := c.FetchProfile(context.Background(), StaticToken("tok"))
		require.ErrorIs(t, err, ErrServer)
	})

	t.Run("malformed profile", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{}})
		})

		_, err := c.FetchProfile(context.Background(), StaticToken("tok"))
		require.ErrorIs(t, err, ErrServer)
	})
}

func TestClientOptions(t *testing.T) {
	t.Parallel()

	t.Run("logger survives a later http client", func(t *testing.T) {
		var reqID atomic.Value
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			reqID.Store(r.Header.Get(slogx.RequestIDHeader))
			w.WriteHeader(http.StatusNoContent)
		},
			WithLogger(slog.New(slog.DiscardHandler)),
			WithHTTPClient(&http.Client{}),
		)

		require.NoError(t, c.Logout(context.Background(), StaticToken("tok")))
		require.NotEmpty(t, reqID.Load())
	})

	t.Run("caller client is not modified", func(t *testing.T) {
		hc := &http.Client{}
		c := NewClient("http://identity.test", WithHTTPClient(hc), WithTimeout(time.Second), WithLogger(slog.Default()))
		require.Zero(t, hc.Timeout)
		require.Nil(t, hc.Transport)
		require.Equal(t, time.Second, c.HTTPClient.Timeout)
	})

	t.Run("nil http client keeps the default", func(t *testing.T) {
		var c *Client
		require.NotPanics(t, func() {
			c = NewClient("http://identity.test", WithHTTPClient(nil), WithTimeout(2*time.Second))
		})
		require.NotNil(t, c.HTTPClient)
		require.Equal(t, 2*time.Second, c.HTTPClient.Timeout)
	})

	t.Run("default timeout", func(t *testing.T) {
		c := NewClient("http://identity.test")
		require.Equal(t, 10*time.Second, c.HTTPClient.Timeout)
	})
}

func TestNetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url)

	_, err := c.FetchProfile(context.Background(), StaticToken("tok"))
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, KindNetwork, KindOf(err))

	err = c.Logout(context.Background(), StaticToken("tok"))
	require.ErrorIs(t, err, ErrNetwork)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logout", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.Logout(context.Background(), StaticToken("tok")))
}

func TestCheckPermission(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		allowed bool
		kind    Kind
	}{
		{name: "empty ok", status: http.StatusOK, allowed: true},
		{name: "explicit allow", status: http.StatusOK, body: `{"allowed":true}`, allowed: true},
		{name: "explicit deny", status: http.StatusOK, body: `{"allowed":false}`, allowed: false},
		{name: "bare false", status: http.StatusOK, body: `false`, allowed: false},
		{name: "forbidden", status: http.StatusForbidden, body: `{"message":"no"}`, allowed: false},
		{name: "unauthenticated", status: http.StatusUnauthorized, kind: KindUnauthorized},
		{name: "server error", status: http.StatusInternalServerError, kind: KindServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/check-permission", r.URL.Path)
				require.Equal(t, "maps", r.URL.Query().Get("resource"))
				require.Equal(t, "edit", r.URL.Query().Get("action"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			allowed, err := c.CheckPermission(context.Background(), StaticToken("tok"), "maps", "edit")
			if tt.kind != "" {
				require.Error(t, err)
				require.Equal(t, tt.kind, KindOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/user/update", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": 1, "email": "a@b.com", "name": body["name"]}})
	})

	p, err := c.UpdateProfile(context.Background(), StaticToken("tok"), map[string]any{"name": "Grace"})
	require.NoError(t, err)
	require.Equal(t, "Grace", p.Name)

	_, err = c.UpdateProfile(context.Background(), StaticToken("tok"), nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestAuthRateLimit(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok", "expires_in": 60})
	}, WithAuthRateLimit(1, time.Hour, 1))

	_, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "secret"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Login(ctx, Credentials{Email: "a@b.com", Password: "secret"})
	require.ErrorIs(t, err, ErrNetwork)
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindServer, KindOf(serverFailure(500, "boom", nil)))
	require.Equal(t, KindNetwork, KindOf(errors.New("plain")))
	require.False(t, errors.Is(ErrServer, ErrNetwork))
}
