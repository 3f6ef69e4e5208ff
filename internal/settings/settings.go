// Package settings loads graphctl settings from a config file and
// LIVEGRAPH_* environment variables.
package settings

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the full graphctl configuration.
type Settings struct {
	Store     StoreSettings     `mapstructure:"store"`
	Journal   JournalSettings   `mapstructure:"journal"`
	Runtime   RuntimeSettings   `mapstructure:"runtime"`
	Logging   LoggingSettings   `mapstructure:"logging"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

// StoreSettings configures the git-backed graph store.
type StoreSettings struct {
	Dir              string        `mapstructure:"dir"`
	Branch           string        `mapstructure:"branch"`
	LockTimeout      time.Duration `mapstructure:"lock_timeout"`
	LockPollInterval time.Duration `mapstructure:"lock_poll_interval"`
	AuthorName       string        `mapstructure:"author_name"`
	AuthorEmail      string        `mapstructure:"author_email"`
}

// JournalSettings configures the apply journal. An empty path keeps the
// journal in memory.
type JournalSettings struct {
	Path string `mapstructure:"path"`
}

// RuntimeSettings configures the reconciler.
type RuntimeSettings struct {
	QueueSize int `mapstructure:"queue_size"`
}

// LoggingSettings configures the slog handler.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetrySettings toggles OpenTelemetry instrumentation.
type TelemetrySettings struct {
	Metrics bool `mapstructure:"metrics"`
	Tracing bool `mapstructure:"tracing"`
}

// Load reads settings. When configFile is empty, config.yaml is looked up in
// the working directory and $HOME/.config/livegraph; a missing file is fine.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "livegraph"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LIVEGRAPH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.Store.Dir = os.ExpandEnv(s.Store.Dir)
	s.Journal.Path = os.ExpandEnv(s.Journal.Path)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.dir", "./graph-store")
	v.SetDefault("store.branch", "graph-state")
	v.SetDefault("store.lock_timeout", "5s")
	v.SetDefault("store.lock_poll_interval", "25ms")
	v.SetDefault("store.author_name", "livegraph")
	v.SetDefault("store.author_email", "livegraph@localhost")

	v.SetDefault("journal.path", "")

	v.SetDefault("runtime.queue_size", 64)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("telemetry.metrics", false)
	v.SetDefault("telemetry.tracing", false)
}

// Validate checks values viper cannot.
func (s *Settings) Validate() error {
	if s.Store.Dir == "" {
		return errors.New("store.dir is required")
	}
	if s.Store.LockTimeout <= 0 {
		return fmt.Errorf("store.lock_timeout must be positive, got %s", s.Store.LockTimeout)
	}
	if s.Runtime.QueueSize < 0 {
		return fmt.Errorf("runtime.queue_size cannot be negative, got %d", s.Runtime.QueueSize)
	}
	if _, err := parseLevel(s.Logging.Level); err != nil {
		return err
	}
	switch s.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", s.Logging.Format)
	}
	return nil
}

// Logger builds the configured slog logger writing to w.
func (s *Settings) Logger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(s.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}
	if s.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}
