package channel

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/log-shipper/internal/config"
	"github.com/GabrielNunesIT/log-shipper/internal/model"
	"github.com/GabrielNunesIT/log-shipper/internal/storage"
	"github.com/GabrielNunesIT/log-shipper/internal/testutil"
)

func TestRegistry_AddGet(t *testing.T) {
	reg := NewRegistry(openStore(t, ""), newFakeSender(), testutil.NewTestLogger())

	u, err := reg.Add(testConfig(10, time.Second, 1))
	require.NoError(t, err)
	assert.Equal(t, "logs", u.Group())

	_, err = reg.Add(testConfig(10, time.Second, 1))
	assert.Error(t, err, "duplicate group")

	cfg := testConfig(10, time.Second, 1)
	cfg.GroupID = "audit"
	cfg.BatchSizeLimit = 0
	_, err = reg.Add(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	got, ok := reg.Get("logs")
	require.True(t, ok)
	assert.Same(t, u, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"logs"}, reg.Groups())
}

func TestRegistry_StartStop(t *testing.T) {
	store := openStore(t, "")
	snd := newFakeSender()
	snd.respond = alwaysSucceed
	reg := NewRegistry(store, snd, testutil.NewTestLogger())

	for _, group := range []string{"logs", "audit"} {
		cfg := testConfig(1, time.Hour, 1)
		cfg.GroupID = group
		_, err := reg.Add(cfg)
		require.NoError(t, err)
	}

	require.NoError(t, reg.Start(context.Background()))

	audit, _ := reg.Get("audit")
	require.NoError(t, audit.Enqueue(context.Background(), model.NewLogEntry("test", []byte("line"))))
	assert.Eventually(t, func() bool { return storedCount(t, store, "audit") == 0 }, waitFor, tick)

	require.NoError(t, reg.Stop(context.Background()))
	err := audit.Enqueue(context.Background(), model.NewLogEntry("test", []byte("late")))
	assert.ErrorIs(t, err, ErrChannelStopped)
}

func TestRegistry_NotifyEvicted(t *testing.T) {
	var reg *Registry
	store, err := storage.OpenSQLite(
		config.StorageConfig{Path: filepath.Join(t.TempDir(), "events.db"), MaxEvents: 3},
		testutil.NewTestLogger(),
		storage.WithEvictionHandler(func(group string, n int) { reg.NotifyEvicted(group, n) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg = NewRegistry(store, newFakeSender(), testutil.NewTestLogger())

	backupCfg := testConfig(10, time.Hour, 1)
	backupCfg.GroupID = "debug"
	backupCfg.Priority = model.PriorityBackup
	backup, err := reg.Add(backupCfg, WithSuspended())
	require.NoError(t, err)

	highCfg := testConfig(10, time.Hour, 1)
	highCfg.GroupID = "alerts"
	highCfg.Priority = model.PriorityHigh
	high, err := reg.Add(highCfg, WithSuspended())
	require.NoError(t, err)

	require.NoError(t, reg.Start(context.Background()))
	t.Cleanup(func() { _ = reg.Stop(context.Background()) })

	enqueue(t, backup, 3)
	enqueue(t, high, 1)

	assert.Eventually(t, func() bool { return stats(t, backup).ItemsCount == 2 }, waitFor, tick)
	assert.Equal(t, 2, storedCount(t, store, "debug"))
	assert.Equal(t, 1, stats(t, high).ItemsCount)

	// Unknown groups are ignored.
	reg.NotifyEvicted("missing", 1)
}
