package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/csdesk/console-cs/internal/api"
	"github.com/csdesk/console-cs/internal/store"
)

// newLogger builds the command logger honoring log.level. Anything below
// info is discarded; debug adds file/line.
func newLogger(prefix string) *log.Logger {
	level := strings.ToLower(GetConfig().Log.Level)
	switch level {
	case "debug":
		return log.New(os.Stderr, prefix, log.LstdFlags|log.Lshortfile)
	case "warn", "error":
		return log.New(io.Discard, prefix, 0)
	default:
		return log.New(os.Stderr, prefix, log.LstdFlags)
	}
}

// openClient opens the local state store and builds the API client on top
// of it. The caller must Close the returned store.
func openClient(logger *log.Logger) (*store.Store, *api.Client, error) {
	config := GetConfig()

	st, err := store.NewStore(config.State.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state database: %w", err)
	}

	client := api.NewClient(config.API.BaseURL, st, logger)
	return st, client, nil
}
