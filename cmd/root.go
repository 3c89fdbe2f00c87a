// Package cmd wires the CLI: the interactive TUI (serve), headless list
// and auth commands, and push subscription management.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	apiURL    string
	statePath string
	redisURL  string
	logLevel  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "console-cs",
	Short: "Terminal client for the customer-support case tracker",
	Long: `Console-CS is a terminal client for the customer-support case tracking
backend. It covers the daily workflow of a support agent:

- Case browsing, creation, commenting, and checklists
- Product and license catalog with memos
- Quote request triage
- Admin user management
- Notification polling with optional Redis push delivery

Authentication state and the seen-notification ledger are kept in a local
SQLite file, so sessions and badges survive restarts.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.console-cs.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8000/api", "Backend API base URL")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", defaultStatePath(), "Local state database path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis URL for push delivery (empty disables push)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("api.base_url", rootCmd.PersistentFlags().Lookup("api"))
	viper.BindPFlag("state.path", rootCmd.PersistentFlags().Lookup("state"))
	viper.BindPFlag("push.redis_url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./console-cs.db"
	}
	return home + "/.local/share/console-cs/state.db"
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".console-cs" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".console-cs")
	}

	viper.SetEnvPrefix("CONSOLE_CS")
	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Set defaults
	viper.SetDefault("api.base_url", "http://localhost:8000/api")
	viper.SetDefault("state.path", defaultStatePath())
	viper.SetDefault("push.redis_url", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("poll.interval", 30*time.Second)
	viper.SetDefault("poll.search_debounce", 400*time.Millisecond)
	viper.SetDefault("session.idle_timeout", 60*time.Minute)
	viper.SetDefault("ui.theme", "dark")
	viper.SetDefault("list.page_size", 20)
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: viper.GetString("api.base_url"),
		},
		State: StateConfig{
			Path: viper.GetString("state.path"),
		},
		Push: PushConfig{
			RedisURL: viper.GetString("push.redis_url"),
		},
		Poll: PollConfig{
			Interval:       viper.GetDuration("poll.interval"),
			SearchDebounce: viper.GetDuration("poll.search_debounce"),
		},
		Session: SessionConfig{
			IdleTimeout: viper.GetDuration("session.idle_timeout"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
		UI: UIConfig{
			Theme:    viper.GetString("ui.theme"),
			PageSize: viper.GetInt("list.page_size"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	State   StateConfig   `mapstructure:"state"`
	Push    PushConfig    `mapstructure:"push"`
	Poll    PollConfig    `mapstructure:"poll"`
	Session SessionConfig `mapstructure:"session"`
	Log     LogConfig     `mapstructure:"log"`
	UI      UIConfig      `mapstructure:"ui"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type StateConfig struct {
	Path string `mapstructure:"path"`
}

type PushConfig struct {
	RedisURL string `mapstructure:"redis_url"`
}

type PollConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`
}

type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type UIConfig struct {
	Theme    string `mapstructure:"theme"`
	PageSize int    `mapstructure:"page_size"`
}
