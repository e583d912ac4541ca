package wizard

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	gocache "github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDraftStore(t *testing.T) {
	ctx := context.Background()

	t.Run("restore on an empty slot reports not found", func(t *testing.T) {
		store := NewMemoryDraftStore(NewMemoryDraftCache(), "session-a")

		_, found, err := store.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("save then restore round-trips", func(t *testing.T) {
		store := NewMemoryDraftStore(NewMemoryDraftCache(), "session-a")

		draft := Draft{Step: StepTeam, Form: validForm()}
		require.NoError(t, store.Save(ctx, draft))

		got, found, err := store.Restore(ctx)
		require.NoError(t, err)
		require.True(t, found)
		assert.Empty(t, cmp.Diff(draft, got))
	})

	t.Run("slots are isolated per session key", func(t *testing.T) {
		cache := NewMemoryDraftCache()
		storeA := NewMemoryDraftStore(cache, "session-a")
		storeB := NewMemoryDraftStore(cache, "session-b")

		require.NoError(t, storeA.Save(ctx, Draft{Step: StepPayment, Form: validForm()}))

		_, found, err := storeB.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("corrupt payload reports not found instead of failing", func(t *testing.T) {
		cache := NewMemoryDraftCache()
		cache.Set("session-a", []byte("{not json"), gocache.DefaultExpiration)
		store := NewMemoryDraftStore(cache, "session-a")

		_, found, err := store.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("clear empties the slot", func(t *testing.T) {
		store := NewMemoryDraftStore(NewMemoryDraftCache(), "session-a")

		require.NoError(t, store.Save(ctx, Draft{Step: StepLeader, Form: validForm()}))
		require.NoError(t, store.Clear(ctx))

		_, found, err := store.Restore(ctx)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
