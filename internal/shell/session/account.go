package session

import (
	"context"
	"log/slog"

	"github.com/mymindmap/shell/pkg/identity"
)

// UpdateProfile submits changed profile attributes and caches the returned
// profile. An unauthorized response ends the session; other failures only
// set LastError.
func (c *Controller) UpdateProfile(ctx context.Context, fields map[string]any) error {
	ctx, log, done := c.begin(ctx, "update_profile")
	defer done()

	c.mu.Lock()
	epoch := c.epoch
	token := c.effectiveLocked()
	c.mu.Unlock()

	if token == "" {
		return ErrNoSession
	}

	profile, err := c.identity.UpdateProfile(ctx, identity.StaticToken(token), fields)

	c.mu.Lock()
	if c.epoch != epoch || c.token.Value != token {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		if identity.KindOf(err) == identity.KindUnauthorized {
			_ = c.resetLocked(ctx, log)
			log.Warn("credential rejected on profile update, session cleared")
		}
		c.lastErr = errorInfo(err)
		c.mu.Unlock()
		log.Warn("profile update failed", "kind", identity.KindOf(err), "error", err)
		return err
	}
	user := toUser(profile)
	c.user = &user
	c.lastErr = nil
	c.mu.Unlock()

	log.Info("profile updated", "user_id", user.ID)
	c.applyLocale(ctx, log, user.Locale)
	return nil
}

// CheckPermission asks the identity service whether the user may perform
// action on resource. It never fails: without a session, or when the call
// fails, the answer is no.
func (c *Controller) CheckPermission(ctx context.Context, resource, action string) bool {
	ctx, log, done := c.begin(ctx, "check_permission")
	defer done()

	token := c.EffectiveToken()
	if token == "" {
		return false
	}

	allowed, err := c.identity.CheckPermission(ctx, identity.StaticToken(token), resource, action)
	if err != nil {
		log.Warn("permission check failed", "resource", resource, "action", action, "kind", identity.KindOf(err), "error", err)
		return false
	}
	log.Debug("permission checked", "resource", resource, "action", action, "allowed", allowed)
	return allowed
}

// ExpireIfStale clears the session once its credential has expired and
// reports whether it did.
func (c *Controller) ExpireIfStale(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.IsZero() || c.token.Valid(c.now()) {
		return false
	}

	log := c.logger.With("op", "expire")
	log.Info("credential expired", "expires_at", c.token.ExpiresAt)
	_ = c.resetLocked(ctx, log)
	return true
}

// applyLocale switches the interface language when the profile asks for a
// different one. No reload happens; failures are logged.
func (c *Controller) applyLocale(ctx context.Context, log *slog.Logger, locale string) {
	if c.locale == nil || locale == "" {
		return
	}
	if c.locale.CurrentLocale(ctx) == locale {
		return
	}
	if err := c.locale.ApplyLocale(ctx, locale); err != nil {
		log.Warn("failed to apply profile locale", "locale", locale, "error", err)
		return
	}
	log.Info("applied profile locale", "locale", locale)
}
