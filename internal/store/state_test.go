package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	assert.Empty(t, store.Token())

	require.NoError(t, store.SetToken("jwt-value"))
	assert.Equal(t, "jwt-value", store.Token())

	require.NoError(t, store.ClearToken())
	assert.Empty(t, store.Token())
}

func TestTokenSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.SetToken("persisted"))
	require.NoError(t, store.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, "persisted", reopened.Token())
}

func TestSeenNotifications(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	seen, err := store.SeenNotificationIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen)

	require.NoError(t, store.MarkNotificationsSeen(ctx, []int{1, 2, 3}))

	seen, err = store.SeenNotificationIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, seen, 3)
	assert.True(t, seen[2])

	// Re-marking already-seen IDs is a no-op.
	require.NoError(t, store.MarkNotificationsSeen(ctx, []int{2, 3, 4}))
	seen, err = store.SeenNotificationIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, seen, 4)

	// Marking nothing is fine.
	require.NoError(t, store.MarkNotificationsSeen(ctx, nil))
}

func TestPruneSeenNotifications(t *testing.T) {
	store, err := NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.MarkNotificationsSeen(ctx, []int{10, 11}))

	// Records newer than the retention window survive.
	require.NoError(t, store.PruneSeenNotifications(ctx, time.Hour))
	seen, err := store.SeenNotificationIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, seen, 2)

	// A zero window prunes everything marked before now.
	time.Sleep(1100 * time.Millisecond)
	require.NoError(t, store.PruneSeenNotifications(ctx, 0))
	seen, err = store.SeenNotificationIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestDeviceIDStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := NewStore(path)
	require.NoError(t, err)

	id, err := store.DeviceID(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	again, err := store.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, again)
	require.NoError(t, store.Close())

	// The identifier survives a reopen; push registration depends on it
	// never changing for a device.
	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	persisted, err := reopened.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, persisted)
}
