// Package config loads process configuration from WEBSHELL_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const prefix = "WEBSHELL"

// Config holds all process configuration.
type Config struct {
	Server    ServerConfig
	Downloads DownloadsConfig
	Provider  ProviderConfig
	Notify    NotifyConfig
	Log       LogConfig
}

// ServerConfig configures the bridge HTTP server.
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:"127.0.0.1:8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"5s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"20s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"*"`
	TrustedOrigins  []string      `envconfig:"TRUSTED_ORIGINS"`
	StaticDir       string        `envconfig:"STATIC_DIR"`
}

// DownloadsConfig configures the download facility.
type DownloadsConfig struct {
	Dir           string        `envconfig:"DIR"`
	MaxConcurrent int           `envconfig:"MAX_CONCURRENT" default:"4"`
	Timeout       time.Duration `envconfig:"TIMEOUT" default:"0s"`
	UserAgent     string        `envconfig:"USER_AGENT" default:"webshell/1.0"`
	MaxRedirects  int           `envconfig:"MAX_REDIRECTS" default:"5"`
	ThrottleRPS   int           `envconfig:"THROTTLE_RPS" default:"10"`
	ThrottleBurst int           `envconfig:"THROTTLE_BURST" default:"20"`
	LogProgress   bool          `envconfig:"LOG_PROGRESS" default:"false"`
}

// ProviderConfig configures content URIs and viewers.
type ProviderConfig struct {
	Authority string        `envconfig:"AUTHORITY" default:"com.mealhub.app.fileprovider"`
	GrantTTL  time.Duration `envconfig:"GRANT_TTL" default:"10m"`
	Viewers   []string      `envconfig:"VIEWERS" default:"*/*"`

	// OpenViaBridge makes desktop viewers fetch granted files from the
	// bridge instead of opening them in place.
	OpenViaBridge bool `envconfig:"OPEN_VIA_BRIDGE" default:"false"`
}

// NotifyConfig configures the notification feed.
type NotifyConfig struct {
	FeedSize int `envconfig:"FEED_SIZE" default:"100"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"text"`
}

// Load reads the environment and fills in derived defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Downloads.Dir == "" {
		dir, err := DefaultDownloadsDir()
		if err != nil {
			return nil, err
		}
		cfg.Downloads.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	var errs []error

	if c.Downloads.MaxConcurrent < 0 {
		errs = append(errs, errors.New("downloads max concurrent must not be negative"))
	}
	if c.Downloads.MaxRedirects < 0 {
		errs = append(errs, errors.New("downloads max redirects must not be negative"))
	}
	if c.Downloads.ThrottleRPS < 0 || c.Downloads.ThrottleBurst < 0 {
		errs = append(errs, errors.New("downloads throttle must not be negative"))
	}
	if c.Provider.GrantTTL <= 0 {
		errs = append(errs, errors.New("provider grant ttl must be positive"))
	}
	if c.Notify.FeedSize <= 0 {
		errs = append(errs, errors.New("notify feed size must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log format %q must be text or json", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Usage prints the recognised environment variables.
func Usage(w io.Writer) error {
	var cfg Config
	return envconfig.Usagef(prefix, &cfg, w, envconfig.DefaultTableFormat)
}

// DefaultDownloadsDir is $HOME/Downloads, or /sdcard/Download on Android.
func DefaultDownloadsDir() (string, error) {
	if os.Getenv("ANDROID_DATA") != "" || os.Getenv("ANDROID_ROOT") != "" {
		return "/sdcard/Download", nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, "Downloads"), nil
}

// Logger builds the process logger.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}

	return level, nil
}
