// Package service holds background workers that run alongside the shell.
package service

import (
	"context"
	"log/slog"
	"time"
)

// Expirer is the session side of the watcher. *session.Controller
// implements it.
type Expirer interface {
	ExpireIfStale(ctx context.Context) bool
	LoginRoute() string
}

// Navigator moves the user after their session expired.
type Navigator interface {
	Navigate(ctx context.Context, path string) error
}

// ExpiryWatcher periodically checks the session credential and ends the
// session once it has expired, sending the user to the login route.
type ExpiryWatcher struct {
	Session   Expirer
	Navigator Navigator // optional
	Logger    *slog.Logger
	Interval  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewExpiryWatcher creates a watcher. If interval is 0 or negative it
// defaults to 30 seconds.
func NewExpiryWatcher(session Expirer, nav Navigator, logger *slog.Logger, interval time.Duration) *ExpiryWatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &ExpiryWatcher{
		Session:   session,
		Navigator: nav,
		Logger:    logger,
		Interval:  interval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the watcher in the background. Call Stop to shut it down.
func (w *ExpiryWatcher) Start() {
	go w.run()
	w.Logger.Info("expiry watcher started", "interval", w.Interval)
}

// Stop shuts the watcher down and waits for an in-progress check.
func (w *ExpiryWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
	w.Logger.Info("expiry watcher stopped")
}

func (w *ExpiryWatcher) run() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(context.Background())
		case <-w.stopCh:
			return
		}
	}
}

// Check runs a single expiry check and reports whether the session ended.
func (w *ExpiryWatcher) Check(ctx context.Context) bool {
	if !w.Session.ExpireIfStale(ctx) {
		return false
	}

	w.Logger.Info("session expired")
	if w.Navigator == nil {
		return true
	}
	if err := w.Navigator.Navigate(ctx, w.Session.LoginRoute()); err != nil {
		w.Logger.Warn("failed to leave expired session", "error", err)
	}
	return true
}
