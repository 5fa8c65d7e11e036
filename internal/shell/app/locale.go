package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mymindmap/shell/internal/shell/store"
)

// PreferenceLocale applies the interface locale by recording it in the
// preferences store, where the rendering side picks it up.
type PreferenceLocale struct {
	prefs  store.Preferences
	logger *slog.Logger
}

func NewPreferenceLocale(prefs store.Preferences, logger *slog.Logger) *PreferenceLocale {
	return &PreferenceLocale{prefs: prefs, logger: logger}
}

// CurrentLocale returns the applied locale, or "" when none was applied.
func (l *PreferenceLocale) CurrentLocale(ctx context.Context) string {
	locale, err := l.prefs.Locale(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			l.logger.Warn("failed to read applied locale", "error", err)
		}
		return ""
	}
	return locale
}

func (l *PreferenceLocale) ApplyLocale(ctx context.Context, locale string) error {
	return l.prefs.SetLocale(ctx, locale)
}
