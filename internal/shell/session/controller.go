// Package session owns the single client session: the credential, its
// expiry, the cached user profile and the last error, and every lifecycle
// operation that changes them.
package session

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/store"
	"github.com/mymindmap/shell/pkg/identity"
	"github.com/mymindmap/shell/pkg/idx"
	"github.com/mymindmap/shell/pkg/slogx"
)

// Identity is the remote side of the session. *identity.Client implements it.
type Identity interface {
	Login(ctx context.Context, creds identity.Credentials) (identity.Grant, error)
	Register(ctx context.Context, req identity.RegisterRequest) (identity.Grant, error)
	FetchProfile(ctx context.Context, ts identity.TokenSource) (identity.Profile, error)
	Logout(ctx context.Context, ts identity.TokenSource) error
	CheckPermission(ctx context.Context, ts identity.TokenSource, resource, action string) (bool, error)
	UpdateProfile(ctx context.Context, ts identity.TokenSource, fields map[string]any) (identity.Profile, error)
}

// Navigator commits a route change.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// LocaleApplier switches the interface language in place.
type LocaleApplier interface {
	CurrentLocale(ctx context.Context) string
	ApplyLocale(ctx context.Context, locale string) error
}

// Config wires a Controller. Identity and Tokens are required.
type Config struct {
	Identity  Identity
	Tokens    store.Tokens
	Navigator Navigator
	Locale    LocaleApplier
	Logger    *slog.Logger

	// Now is the clock used for every expiry check. Default: time.Now
	Now func() time.Time

	LandingRoute string // Default: "/"
	LoginRoute   string // Default: "/login"
}

// Controller is the only writer of session state. Reads go through State or
// the accessors, which copy under the lock.
type Controller struct {
	identity Identity
	tokens   store.Tokens
	locale   LocaleApplier
	logger   *slog.Logger
	now      func() time.Time

	landingRoute string
	loginRoute   string

	mu            sync.Mutex
	navigator     Navigator
	token         domain.Token
	user          *domain.UserProfile
	authenticated bool
	lastErr       *ErrorInfo
	inflight      int

	// epoch moves on every login, register and logout. Operations capture
	// it when they start and drop their outcome if it moved.
	epoch uint64
}

// NewController creates a controller with an empty session. Call Bootstrap
// to hydrate it from the token store.
func NewController(cfg Config) *Controller {
	c := &Controller{
		identity:     cfg.Identity,
		tokens:       cfg.Tokens,
		navigator:    cfg.Navigator,
		locale:       cfg.Locale,
		logger:       cfg.Logger,
		now:          cfg.Now,
		landingRoute: cfg.LandingRoute,
		loginRoute:   cfg.LoginRoute,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.landingRoute == "" {
		c.landingRoute = "/"
	}
	if c.loginRoute == "" {
		c.loginRoute = "/login"
	}
	return c
}

// SetNavigator attaches the router after construction, since the router's
// guard itself depends on the controller.
func (c *Controller) SetNavigator(n Navigator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navigator = n
}

// LandingRoute is where a successful login lands.
func (c *Controller) LandingRoute() string { return c.landingRoute }

// LoginRoute is where logout and failed guards send the user.
func (c *Controller) LoginRoute() string { return c.loginRoute }

// State is an immutable snapshot of the session.
type State struct {
	// Authenticated is true only while a verified profile is held and the
	// credential has not expired.
	Authenticated bool
	Token         string
	ExpiresAt     time.Time
	User          *domain.UserProfile
	Loading       bool
	LastError     *ErrorInfo
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Authenticated: c.authenticatedLocked(),
		Token:         c.token.Value,
		ExpiresAt:     c.token.ExpiresAt,
		Loading:       c.inflight > 0,
		LastError:     c.lastErr.clone(),
	}
	if c.user != nil {
		u := *c.user
		u.Fields = maps.Clone(u.Fields)
		s.User = &u
	}
	return s
}

// IsAuthenticated reports whether a live, verified session is held.
func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticatedLocked()
}

// User returns a copy of the cached profile, or nil. Fields is copied too.
func (c *Controller) User() *domain.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	u.Fields = maps.Clone(u.Fields)
	return &u
}

// Loading reports whether any lifecycle operation is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// LastError returns the error of the last failed operation, or nil.
func (c *Controller) LastError() *ErrorInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr.clone()
}

// EffectiveToken returns the credential while it is unexpired and "" after.
// It is the only token ever handed to the identity client.
func (c *Controller) EffectiveToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveLocked()
}

// RoleName resolves a role id, "hidden" when unknown.
func (c *Controller) RoleName(id domain.Role) string { return domain.RoleName(id) }

// StatusName resolves a status id, "hidden" when unknown.
func (c *Controller) StatusName(id domain.Status) string { return domain.StatusName(id) }

func (c *Controller) effectiveLocked() string {
	if c.token.Valid(c.now()) {
		return c.token.Value
	}
	return ""
}

func (c *Controller) authenticatedLocked() bool {
	return c.authenticated && c.user != nil && c.token.Valid(c.now())
}

// begin registers an in-flight operation and tags the context logger. The
// returned func must be deferred.
func (c *Controller) begin(ctx context.Context, op string) (context.Context, *slog.Logger, func()) {
	ctx = slogx.WithContext(ctx, c.logger)
	ctx = slogx.WithOperation(ctx, op, idx.New().String())

	c.mu.Lock()
	c.inflight++
	c.mu.Unlock()

	return ctx, slogx.FromContext(ctx), func() {
		c.mu.Lock()
		c.inflight--
		c.mu.Unlock()
	}
}

// resetLocked drops the in-memory session and the persisted token. The
// store write ignores cancellation of ctx.
func (c *Controller) resetLocked(ctx context.Context, log *slog.Logger) error {
	c.token = domain.Token{}
	c.user = nil
	c.authenticated = false
	if err := c.tokens.Clear(context.WithoutCancel(ctx)); err != nil {
		log.Error("failed to clear persisted token", "error", err)
		return err
	}
	return nil
}

func (c *Controller) navigate(ctx context.Context, log *slog.Logger, path string) {
	c.mu.Lock()
	n := c.navigator
	c.mu.Unlock()

	if n == nil {
		return
	}
	if err := n.Navigate(ctx, path); err != nil {
		log.Warn("navigation failed", "path", path, "error", err)
	}
}
