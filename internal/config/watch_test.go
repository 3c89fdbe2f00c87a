package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadReloadable(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("poll.interval", "45s")
	viper.Set("poll.search_debounce", "300ms")
	viper.Set("session.idle_timeout", "30m")
	viper.Set("ui.theme", "light")

	settings := ReadReloadable()
	assert.Equal(t, 45*time.Second, settings.PollInterval)
	assert.Equal(t, 300*time.Millisecond, settings.SearchDebounce)
	assert.Equal(t, 30*time.Minute, settings.IdleTimeout)
	assert.Equal(t, "light", settings.Theme)
}

func TestWatcherNoConfigFile(t *testing.T) {
	w := NewWatcher("", func(Reloadable) {
		t.Error("apply must not run without a config file")
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatcherAppliesOnWrite(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  idle_timeout: 60m\n"), 0o644))

	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	var mu sync.Mutex
	var applied []Reloadable
	w := NewWatcher(path, func(r Reloadable) {
		mu.Lock()
		applied = append(applied, r)
		mu.Unlock()
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond) // let the watch register

	require.NoError(t, os.WriteFile(path, []byte("session:\n  idle_timeout: 15m\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) >= 1
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, 15*time.Minute, applied[len(applied)-1].IdleTimeout)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui:\n  theme: dark\n"), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	applied := make(chan Reloadable, 1)
	w := NewWatcher(path, func(r Reloadable) { applied <- r }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Writes to sibling files in the watched directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))

	select {
	case <-applied:
		t.Fatal("apply ran for an unrelated file")
	case <-time.After(500 * time.Millisecond):
	}
}
