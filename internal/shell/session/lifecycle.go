package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/store"
	"github.com/mymindmap/shell/pkg/cryptox"
	"github.com/mymindmap/shell/pkg/identity"
)

// Bootstrap hydrates the session from the token store. A valid token is
// confirmed with a profile fetch; an expired one is cleared without any
// network call. Unreadable storage fails closed.
func (c *Controller) Bootstrap(ctx context.Context) error {
	ctx, log, done := c.begin(ctx, "bootstrap")
	defer done()

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	token, err := c.tokens.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Debug("no persisted session")
		return nil
	case err != nil:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return ErrSuperseded
		}
		_ = c.resetLocked(ctx, log)
		c.lastErr = &ErrorInfo{Kind: KindStorage, Message: "saved session could not be read"}
		log.Error("failed to load persisted token", "error", err)
		return fmt.Errorf("session: load token: %w", err)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if !token.Valid(c.now()) {
		log.Info("persisted session expired", "expires_at", token.ExpiresAt)
		_ = c.resetLocked(ctx, log)
		c.mu.Unlock()
		return nil
	}
	c.token = token
	c.mu.Unlock()

	log.Info("restoring persisted session", "expires_at", token.ExpiresAt, "token_fp", cryptox.Fingerprint(token.Value))
	return c.refreshProfile(ctx, log, epoch)
}

// Login authenticates with credentials, persists the credential, verifies it
// with a profile fetch and navigates to the landing route. A failed login
// records LastError and leaves any existing session as it was.
func (c *Controller) Login(ctx context.Context, creds identity.Credentials) error {
	ctx, log, done := c.begin(ctx, "login")
	defer done()

	return c.authenticate(ctx, log, func(ctx context.Context) (identity.Grant, error) {
		return c.identity.Login(ctx, creds)
	})
}

// Register creates an account and signs into it like Login. Validation
// failures are kept in LastError with their field messages.
func (c *Controller) Register(ctx context.Context, req identity.RegisterRequest) error {
	ctx, log, done := c.begin(ctx, "register")
	defer done()

	return c.authenticate(ctx, log, func(ctx context.Context) (identity.Grant, error) {
		return c.identity.Register(ctx, req)
	})
}

func (c *Controller) authenticate(
	ctx context.Context,
	log *slog.Logger,
	issue func(context.Context) (identity.Grant, error),
) error {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.lastErr = nil
	c.mu.Unlock()

	grant, err := issue(ctx)
	if err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.epoch != epoch {
			return ErrSuperseded
		}
		c.lastErr = errorInfo(err)
		log.Warn("authentication failed", "kind", identity.KindOf(err), "error", err)
		return err
	}

	token := domain.Token{Value: grant.Token, ExpiresAt: grant.ExpiresAt}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		log.Info("discarding grant from superseded attempt")
		return ErrSuperseded
	}
	if !token.Valid(c.now()) {
		c.lastErr = &ErrorInfo{Kind: identity.KindServer, Message: "issued credential is already expired"}
		c.mu.Unlock()
		log.Warn("issued credential already expired", "expires_at", token.ExpiresAt)
		return &identity.Failure{Kind: identity.KindServer, Message: "issued credential is already expired"}
	}

	// Persisting under the lock keeps a later logout's clear ordered after it
	if err := c.tokens.Persist(context.WithoutCancel(ctx), token); err != nil {
		log.Warn("failed to persist credential, session will not survive restart", "error", err)
	}
	c.token = token
	c.user = nil
	c.authenticated = false
	c.mu.Unlock()

	log.Info("credential issued", "expires_at", token.ExpiresAt, "token_fp", cryptox.Fingerprint(token.Value))

	if err := c.refreshProfile(ctx, log, epoch); err != nil {
		return err
	}

	c.navigate(ctx, log, c.landingRoute)
	return nil
}

// FetchProfile asks the identity service who the credential belongs to. On
// success the profile is cached and the session is authenticated; on any
// failure the whole session is cleared.
func (c *Controller) FetchProfile(ctx context.Context) error {
	ctx, log, done := c.begin(ctx, "fetch_profile")
	defer done()

	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()

	return c.refreshProfile(ctx, log, epoch)
}

func (c *Controller) refreshProfile(ctx context.Context, log *slog.Logger, epoch uint64) error {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrSuperseded
	}
	token := c.effectiveLocked()
	if token == "" {
		if !c.token.IsZero() || c.user != nil {
			log.Info("credential expired, clearing session")
			_ = c.resetLocked(ctx, log)
		}
		c.mu.Unlock()
		return ErrNoSession
	}
	c.mu.Unlock()

	profile, err := c.identity.FetchProfile(ctx, identity.StaticToken(token))

	c.mu.Lock()
	// A different credential means a newer operation owns the session
	if c.epoch != epoch || c.token.Value != token {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		_ = c.resetLocked(ctx, log)
		c.lastErr = errorInfo(err)
		c.mu.Unlock()
		log.Warn("profile fetch failed, session cleared", "kind", identity.KindOf(err), "error", err)
		return err
	}
	user := toUser(profile)
	c.user = &user
	c.authenticated = true
	c.mu.Unlock()

	log.Info("session authenticated", "user_id", user.ID, "role", user.RoleName())
	c.applyLocale(ctx, log, user.Locale)
	return nil
}

// Logout ends the session. Local state and the persisted token are cleared
// first and unconditionally; the remote logout is best effort, and the user
// always lands on the login route.
func (c *Controller) Logout(ctx context.Context) error {
	ctx, log, done := c.begin(ctx, "logout")
	defer done()

	c.mu.Lock()
	c.epoch++
	token := c.effectiveLocked()
	clearErr := c.resetLocked(ctx, log)
	c.lastErr = nil
	c.mu.Unlock()

	if token != "" {
		if err := c.identity.Logout(ctx, identity.StaticToken(token)); err != nil {
			log.Warn("remote logout failed", "kind", identity.KindOf(err), "error", err)
		}
	}

	log.Info("session ended")
	c.navigate(ctx, log, c.loginRoute)

	if clearErr != nil {
		return fmt.Errorf("session: clear token: %w", clearErr)
	}
	return nil
}

func toUser(p identity.Profile) domain.UserProfile {
	return domain.UserProfile{
		ID:       p.ID,
		Name:     p.Name,
		Email:    p.Email,
		RoleID:   domain.Role(p.RoleID),
		StatusID: domain.Status(p.StatusID),
		Locale:   p.Locale,
		Fields:   p.Fields,
	}
}
