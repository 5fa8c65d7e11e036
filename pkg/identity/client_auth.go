package identity

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mymindmap/shell/pkg/jwtx"
)

// Login exchanges credentials for a Grant.
func (c *Client) Login(ctx context.Context, creds Credentials) (Grant, error) {
	if err := c.checkRequest(creds); err != nil {
		return Grant{}, err
	}
	return c.issue(ctx, c.Paths.Login, creds)
}

// Register creates an account and returns a Grant for it.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (Grant, error) {
	if err := c.checkRequest(req); err != nil {
		return Grant{}, err
	}
	return c.issue(ctx, c.Paths.Register, req)
}

// Logout revokes the credential yielded by ts. Any 2xx is success.
func (c *Client) Logout(ctx context.Context, ts TokenSource) error {
	resp, err := c.doRequest(ctx, http.MethodPost, c.Paths.Logout, nil, nil, ts)
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

// issue posts a credential payload and resolves the token response into a
// Grant with an absolute expiry.
func (c *Client) issue(ctx context.Context, path string, body any) (Grant, error) {
	if c.AuthLimiter != nil {
		if err := c.AuthLimiter.Wait(ctx); err != nil {
			return Grant{}, networkFailure(err)
		}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, nil, body, nil)
	if err != nil {
		return Grant{}, err
	}
	status := resp.StatusCode

	var tr tokenResponse
	if err := decodeJSON(resp, &tr); err != nil {
		return Grant{}, err
	}

	token := tr.value()
	if token == "" {
		return Grant{}, serverFailure(status, "token response has no token", nil)
	}

	expiresAt, err := c.resolveExpiry(tr, token)
	if err != nil {
		return Grant{}, serverFailure(status, "token response has no expiry", err)
	}

	return Grant{Token: token, ExpiresAt: expiresAt}, nil
}

// resolveExpiry prefers an explicit expires_at, then expires_in relative to
// the client clock, then the token's own exp claim.
func (c *Client) resolveExpiry(tr tokenResponse, token string) (time.Time, error) {
	if !tr.ExpiresAt.IsZero() {
		return tr.ExpiresAt.Time, nil
	}
	if tr.ExpiresIn > 0 {
		return c.now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
	}
	exp, err := jwtx.ExpiryOf(token)
	if err != nil {
		return time.Time{}, err
	}
	if exp.IsZero() {
		return time.Time{}, errors.New("identity: zero expiry")
	}
	return exp, nil
}
