package presence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/spark/internal/repository/memory"
	"go.uber.org/zap"
)

func TestStoreRegistry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reg := NewStoreRegistry(store.Repos().Connections)

	clock := time.Now()
	reg.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	require.NoError(t, reg.Register(ctx, "c2", "alice"))
	require.NoError(t, reg.Register(ctx, "c1", "alice"))
	require.NoError(t, reg.Register(ctx, "c3", "bob"))

	ids, err := reg.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, ids)

	owner, err := reg.Lookup(ctx, "c3")
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	require.NoError(t, reg.Unregister(ctx, "c2"))
	require.NoError(t, reg.Unregister(ctx, "c2"), "unregister is idempotent")

	ids, err = reg.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	_, err = reg.Lookup(ctx, "c2")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
}

func TestStoreRegistryOfflineUser(t *testing.T) {
	reg := NewStoreRegistry(memory.NewStore().Repos().Connections)

	ids, err := reg.ConnectionsFor(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStoreRegistryRegisterOverwrites(t *testing.T) {
	ctx := context.Background()
	reg := NewStoreRegistry(memory.NewStore().Repos().Connections)

	require.NoError(t, reg.Register(ctx, "c1", "alice"))
	require.NoError(t, reg.Register(ctx, "c1", "bob"))

	owner, err := reg.Lookup(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	ids, err := reg.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestReaperSweep(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	reg := NewStoreRegistry(store.Repos().Connections)

	reg.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }
	require.NoError(t, reg.Register(ctx, "stale", "alice"))
	reg.now = time.Now
	require.NoError(t, reg.Register(ctx, "fresh", "alice"))

	reaper := NewReaper(store.Repos().Connections, 2*time.Hour, zap.NewNop())
	var reaped int64
	reaper.OnReap = func(n int64) { reaped += n }

	n, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), reaped)

	ids, err := reg.ConnectionsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestReaperScheduleRejectsBadSpec(t *testing.T) {
	reaper := NewReaper(memory.NewStore().Repos().Connections, time.Hour, zap.NewNop())

	_, err := reaper.Schedule("not a schedule")
	assert.Error(t, err)

	c, err := reaper.Schedule("@every 1h")
	require.NoError(t, err)
	c.Stop()
}
