package router

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/mymindmap/shell/internal/shell/domain"
	"github.com/mymindmap/shell/internal/shell/session"
)

// Session is the part of the controller the guard reads.
// *session.Controller implements it.
type Session interface {
	IsAuthenticated() bool
	User() *domain.UserProfile
	FetchProfile(ctx context.Context) error
	LandingRoute() string
	LoginRoute() string
}

// Decision is the guard's verdict for one transition.
type Decision struct {
	Allow    bool
	Redirect string
	Reason   string
}

func allow(reason string) Decision { return Decision{Allow: true, Reason: reason} }

func redirect(to, reason string) Decision { return Decision{Redirect: to, Reason: reason} }

// Guard decides whether a transition may proceed.
type Guard struct {
	Session Session
	Logger  *slog.Logger
}

// Check runs the session checks for a transition to route. It may block on
// a profile fetch when no live session is held.
func (g *Guard) Check(ctx context.Context, route Route) Decision {
	log := g.Logger
	if log == nil {
		log = slog.Default()
	}

	landing := g.Session.LandingRoute()
	login := g.Session.LoginRoute()

	// An authenticated user has no business on the login page
	if route.Path == login && g.Session.IsAuthenticated() {
		return redirect(landing, "already authenticated")
	}

	if route.Public {
		return allow("public")
	}

	if !g.Session.IsAuthenticated() {
		err := g.Session.FetchProfile(ctx)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrNoSession):
			log.Debug("guard: no session", "route", route.Name)
		default:
			log.Info("guard: session check failed", "route", route.Name, "error", err)
		}
		if !g.Session.IsAuthenticated() {
			return redirect(login, "not authenticated")
		}
	}

	if len(route.Roles) == 0 {
		return allow("authenticated")
	}

	user := g.Session.User()
	if user == nil || !slices.Contains(route.Roles, user.RoleID) {
		return redirect(landing, "role not permitted")
	}
	return allow("role permitted")
}
