package memory_test

import (
	"testing"

	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/aussiebroadwan/portal/internal/session/store/drivers/memory"
	"github.com/aussiebroadwan/portal/internal/session/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return memory.NewStore()
	})
}
