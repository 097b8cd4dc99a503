// Package config loads dispatcher settings and builds the process logger.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultListenAddr    = ":8080"
	defaultLogLevel      = "info"
	defaultPoolSize      = 10
	defaultTimeout       = 300 * time.Second
	defaultTargetsDir    = ".dispatch/targets"
	defaultHealthTimeout = 5 * time.Second

	envPrefix = "DISPATCH"

	keyListenAddr     = "listen_addr"
	keyLogLevel       = "log_level"
	keyPoolSize       = "pool_size"
	keyDefaultTimeout = "default_timeout"
	keyTargetsDir     = "targets_dir"
	keyWatchTargets   = "watch_targets"
	keyArchivePath    = "archive_path"
	keyHealthTimeout  = "health_timeout"
	keyBuiltinTargets = "builtin_targets"
)

// Config holds application configuration.
type Config struct {
	ListenAddr     string        `mapstructure:"listen_addr"`
	LogLevelName   string        `mapstructure:"log_level"`
	PoolSize       int           `mapstructure:"pool_size"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	TargetsDir     string        `mapstructure:"targets_dir"`
	WatchTargets   bool          `mapstructure:"watch_targets"`
	// ArchivePath is the SQLite result archive; empty disables archiving.
	ArchivePath   string        `mapstructure:"archive_path"`
	HealthTimeout time.Duration `mapstructure:"health_timeout"`
	// BuiltinTargets registers the simulated search, analysis and content
	// targets in-process.
	BuiltinTargets bool `mapstructure:"builtin_targets"`

	LogLevel slog.Level `mapstructure:"-"`
}

// Load reads configuration with this precedence, highest first:
//  1. Environment variables (DISPATCH_LISTEN_ADDR, DISPATCH_POOL_SIZE, ...)
//  2. The YAML file at configFile, when non-empty
//  3. Built-in defaults
func Load(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = ParseLogLevel(cfg.LogLevelName)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyListenAddr, defaultListenAddr)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyPoolSize, defaultPoolSize)
	v.SetDefault(keyDefaultTimeout, defaultTimeout)
	v.SetDefault(keyTargetsDir, defaultTargetsDir)
	v.SetDefault(keyWatchTargets, false)
	v.SetDefault(keyArchivePath, "")
	v.SetDefault(keyHealthTimeout, defaultHealthTimeout)
	v.SetDefault(keyBuiltinTargets, true)
}

func (c Config) validate() error {
	var errs []error
	if c.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %d", keyPoolSize, c.PoolSize))
	}
	if c.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", keyDefaultTimeout, c.DefaultTimeout))
	}
	if c.HealthTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %s", keyHealthTimeout, c.HealthTimeout))
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
