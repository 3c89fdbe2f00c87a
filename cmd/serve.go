package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/bus"
	"github.com/csdesk/console-cs/internal/config"
	"github.com/csdesk/console-cs/internal/notify"
	"github.com/csdesk/console-cs/internal/session"
	"github.com/csdesk/console-cs/internal/ui"
)

var (
	noTUI      bool
	enablePush bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interactive client",
	Long: `Start the Console-CS client:

1. Terminal User Interface for case, catalog, and quote-request work
2. Notification polling with unread badge and announcements
3. Optional Redis push channel for immediate notification delivery
4. Config hot-reload for poll cadence, idle timeout, and theme

The serve command runs until interrupted (Ctrl+C) or the user quits.
In headless mode (--no-tui) it keeps polling and logs announcements,
which is useful for piping notifications into other tooling.

Examples:
  # Start the TUI (default)
  console-cs serve

  # Headless notification watcher
  console-cs serve --no-tui

  # Register for push delivery on startup
  console-cs serve --subscribe-push`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&noTUI, "no-tui", false, "Run in headless mode without TUI")
	serveCmd.Flags().BoolVar(&enablePush, "subscribe-push", false, "Register this device for push delivery on startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	// File logging for TUI mode keeps the terminal clean; headless logs
	// go to stderr as usual.
	logger := log.New(os.Stderr, "[serve] ", log.LstdFlags)
	var uiLogger *log.Logger
	if !noTUI {
		logFile := setupFileLogger(logger)
		if logFile != nil {
			defer logFile.Close()
			logger = log.New(logFile, "[serve] ", log.LstdFlags)
			uiLogger = log.New(logFile, "[UI] ", log.LstdFlags)
		} else {
			uiLogger = log.New(io.Discard, "[UI] ", log.LstdFlags)
		}
	} else {
		uiLogger = logger
	}

	logger.Println("Starting Console-CS client")

	st, client, err := openClient(logger)
	if err != nil {
		return err
	}
	defer st.Close()

	// Old seen-notification rows only matter while the server still lists
	// the notification as unread; a month is comfortably past that.
	if err := st.PruneSeenNotifications(ctx, 30*24*time.Hour); err != nil {
		logger.Printf("Seen-notification prune failed: %v", err)
	}

	sess := session.NewManager(client, cfg.Session.IdleTimeout, logger)
	defer sess.Close()

	pushBus := bus.NewBus(cfg.Push.RedisURL, logger)
	defer pushBus.Close()

	notifier := notify.NewNotifier(client, st, nil, cfg.Poll.Interval, logger)
	defer notifier.Stop()

	// Per-login lifecycle: polling and the push listener run only while
	// authenticated.
	var lifecycleMu sync.Mutex
	var cancelAuthed context.CancelFunc
	sess.OnChange(func(state session.State, user *api.User) {
		lifecycleMu.Lock()
		defer lifecycleMu.Unlock()
		switch state {
		case session.StateAuthenticated:
			if cancelAuthed != nil {
				return
			}
			authedCtx, cancel := context.WithCancel(ctx)
			cancelAuthed = cancel
			if err := notifier.Start(authedCtx); err != nil {
				logger.Printf("Notifier start failed: %v", err)
			}
			userID := 0
			if user != nil {
				userID = user.ID
			}
			go func() {
				if err := notifier.ListenPush(authedCtx, pushBus, userID); err != nil && authedCtx.Err() == nil {
					logger.Printf("Push listener stopped: %v", err)
				}
			}()
			if enablePush {
				go func() {
					pm := notify.NewPushManager(client, st, logger)
					if err := pm.Subscribe(authedCtx); err != nil {
						logger.Printf("Push subscribe failed: %v", err)
					}
				}()
			}
		case session.StateAnonymous:
			if cancelAuthed != nil {
				cancelAuthed()
				cancelAuthed = nil
				notifier.Stop()
			}
		}
	})

	// The TUI exists before the config watcher so theme and search-debounce
	// reloads have somewhere to land. Headless mode leaves it nil.
	var tui *ui.UI
	if !noTUI {
		tui = ui.NewUI(ctx, client, sess, notifier, ui.Options{
			ThemeName:      cfg.UI.Theme,
			PageSize:       cfg.UI.PageSize,
			SearchDebounce: cfg.Poll.SearchDebounce,
			Logger:         uiLogger,
		})
		notifier.SetAnnouncer(tui)
	}

	// Config hot-reload for the runtime-tunable knobs.
	watcher := config.NewWatcher(viper.ConfigFileUsed(), func(settings config.Reloadable) {
		sess.SetIdleTimeout(settings.IdleTimeout)
		notifier.SetPollInterval(settings.PollInterval)
		if tui != nil {
			tui.SetTheme(settings.Theme)
			tui.SetSearchDebounce(settings.SearchDebounce)
		}
	}, logger)
	go func() {
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("Config watcher stopped: %v", err)
		}
	}()

	sess.Start(ctx)

	if noTUI {
		logger.Println("Running in headless mode...")
		notifier.SetAnnouncer(notify.AnnouncerFunc(func(n api.Notification) {
			logger.Printf("Notification [%s]: %s", n.Type, n.Message)
		}))
		if !sess.IsAuthenticated() {
			return fmt.Errorf("not signed in; run `console-cs login` first")
		}
		<-ctx.Done()
		logger.Println("Received shutdown signal")
		return nil
	}

	if err := tui.Start(ctx); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Println("Console-CS client stopped")
	return nil
}

// setupFileLogger creates logs/console-cs.log next to the state database.
// Returns nil when the file cannot be created; callers fall back to stderr
// or discard.
func setupFileLogger(fallback *log.Logger) *os.File {
	logDir := filepath.Join(filepath.Dir(GetConfig().State.Path), "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		fallback.Printf("Warning: could not create logs directory: %v", err)
		return nil
	}
	logPath := filepath.Join(logDir, "console-cs.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fallback.Printf("Warning: could not create log file at %s: %v", logPath, err)
		return nil
	}
	return logFile
}
