// Package config re-reads tunable settings while the client runs, so an
// operator can adjust poll cadence or the idle timeout without restarting
// a TUI session.
package config

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Reloadable is the subset of settings that may change at runtime. Values
// like the API base URL or the state path require a restart and are not
// re-read.
type Reloadable struct {
	PollInterval   time.Duration
	SearchDebounce time.Duration
	IdleTimeout    time.Duration
	Theme          string
}

// ReadReloadable extracts the runtime-tunable settings from viper.
func ReadReloadable() Reloadable {
	return Reloadable{
		PollInterval:   viper.GetDuration("poll.interval"),
		SearchDebounce: viper.GetDuration("poll.search_debounce"),
		IdleTimeout:    viper.GetDuration("session.idle_timeout"),
		Theme:          viper.GetString("ui.theme"),
	}
}

// Watcher watches the active config file and invokes the apply callback
// with freshly parsed settings after each write.
type Watcher struct {
	path   string
	apply  func(Reloadable)
	logger *log.Logger
}

// NewWatcher creates a watcher for the given config file path. An empty
// path (no config file in use) yields a watcher whose Run is a no-op
// until the context ends.
func NewWatcher(path string, apply func(Reloadable), logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Watcher{path: path, apply: apply, logger: logger}
}

// Run blocks until ctx is cancelled, applying config changes as they land.
// Editors replace files rather than writing in place, so the parent
// directory is watched and events are matched by name.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch add: %w", err)
	}
	w.logger.Printf("Watching config file: %s", w.path)

	// Coalesce bursts of events from editors that write in several steps.
	var pending *time.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-watcher.Events:
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, func() {
				if err := viper.ReadInConfig(); err != nil {
					w.logger.Printf("Config reload failed: %v", err)
					return
				}
				settings := ReadReloadable()
				w.logger.Printf("Config reloaded: poll=%s idle=%s theme=%s",
					settings.PollInterval, settings.IdleTimeout, settings.Theme)
				w.apply(settings)
			})
		case err := <-watcher.Errors:
			if err != nil {
				w.logger.Printf("Config watch error: %v", err)
			}
		}
	}
}
