package memory_test

import (
	"testing"

	"github.com/mymindmap/shell/internal/shell/store"
	"github.com/mymindmap/shell/internal/shell/store/drivers/memory"
	"github.com/mymindmap/shell/internal/shell/store/storetest"
)

func TestTokens(t *testing.T) {
	storetest.RunTokens(t, func(t *testing.T) store.Tokens {
		return memory.NewStore().Tokens()
	})
}

func TestPreferences(t *testing.T) {
	storetest.RunPreferences(t, func(t *testing.T) store.Preferences {
		return memory.NewStore().Preferences()
	})
}
