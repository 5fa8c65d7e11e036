// Package router holds the client route table and commits navigations
// after the guard allows them.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	ErrRouteNotFound    = errors.New("router: no route matches path")
	ErrTooManyRedirects = errors.New("router: too many redirects")
)

// MaxRedirects bounds how many guard redirects one navigation may follow.
const MaxRedirects = 5

// Router resolves paths, runs the guard and records the committed route.
// It implements session.Navigator.
type Router struct {
	routes []Route
	guard  *Guard
	logger *slog.Logger

	mu        sync.Mutex
	current   *Match
	listeners []func(Match)
}

// New creates a router over routes.
func New(routes []Route, guard *Guard, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{routes: routes, guard: guard, logger: logger}
}

// Resolve finds the first route matching path.
func (r *Router) Resolve(path string) (Match, error) {
	path = stripQuery(path)
	for _, route := range r.routes {
		if params, ok := match(route.Path, path); ok {
			return Match{Route: route, Path: path, Params: params}, nil
		}
	}
	return Match{}, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
}

// Navigate transitions to path, following guard redirects, and commits the
// final route.
func (r *Router) Navigate(ctx context.Context, path string) error {
	target := path
	for hop := 0; hop <= MaxRedirects; hop++ {
		m, err := r.Resolve(target)
		if err != nil {
			return err
		}

		d := r.guard.Check(ctx, m.Route)
		if d.Allow {
			r.commit(m)
			r.logger.Debug("navigated", "route", m.Route.Name, "path", m.Path, "reason", d.Reason)
			return nil
		}

		r.logger.Info("navigation redirected", "from", m.Path, "to", d.Redirect, "reason", d.Reason)
		target = d.Redirect
	}
	return fmt.Errorf("%w: started at %s", ErrTooManyRedirects, path)
}

// Current returns the committed route, if any.
func (r *Router) Current() (Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return Match{}, false
	}
	return *r.current, true
}

// OnChange registers fn to run after every committed navigation.
func (r *Router) OnChange(fn func(Match)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Router) commit(m Match) {
	r.mu.Lock()
	r.current = &m
	listeners := append([]func(Match){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(m)
	}
}
