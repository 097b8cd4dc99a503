package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var envKeys = []string{
	"DISPATCH_LISTEN_ADDR",
	"DISPATCH_LOG_LEVEL",
	"DISPATCH_POOL_SIZE",
	"DISPATCH_DEFAULT_TIMEOUT",
	"DISPATCH_TARGETS_DIR",
	"DISPATCH_WATCH_TARGETS",
	"DISPATCH_ARCHIVE_PATH",
	"DISPATCH_HEALTH_TIMEOUT",
	"DISPATCH_BUILTIN_TARGETS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.PoolSize != 10 {
		t.Errorf("PoolSize = %d, want 10", cfg.PoolSize)
	}
	if cfg.DefaultTimeout != 300*time.Second {
		t.Errorf("DefaultTimeout = %v, want 300s", cfg.DefaultTimeout)
	}
	if cfg.TargetsDir != defaultTargetsDir || cfg.WatchTargets {
		t.Errorf("targets = %q watch=%v", cfg.TargetsDir, cfg.WatchTargets)
	}
	if cfg.ArchivePath != "" {
		t.Errorf("ArchivePath = %q, want empty", cfg.ArchivePath)
	}
	if cfg.HealthTimeout != 5*time.Second {
		t.Errorf("HealthTimeout = %v, want 5s", cfg.HealthTimeout)
	}
	if !cfg.BuiltinTargets {
		t.Error("BuiltinTargets = false, want true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISPATCH_LISTEN_ADDR", ":9090")
	t.Setenv("DISPATCH_LOG_LEVEL", "debug")
	t.Setenv("DISPATCH_POOL_SIZE", "3")
	t.Setenv("DISPATCH_DEFAULT_TIMEOUT", "45s")
	t.Setenv("DISPATCH_WATCH_TARGETS", "true")
	t.Setenv("DISPATCH_ARCHIVE_PATH", "/tmp/archive.db")
	t.Setenv("DISPATCH_BUILTIN_TARGETS", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.PoolSize != 3 {
		t.Errorf("PoolSize = %d, want 3", cfg.PoolSize)
	}
	if cfg.DefaultTimeout != 45*time.Second {
		t.Errorf("DefaultTimeout = %v, want 45s", cfg.DefaultTimeout)
	}
	if !cfg.WatchTargets {
		t.Error("WatchTargets = false, want true")
	}
	if cfg.ArchivePath != "/tmp/archive.db" {
		t.Errorf("ArchivePath = %q", cfg.ArchivePath)
	}
	if cfg.BuiltinTargets {
		t.Error("BuiltinTargets = true, want false")
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	doc := "listen_addr: \":7070\"\npool_size: 4\nhealth_timeout: 2s\ntargets_dir: /etc/dispatch/targets\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("DISPATCH_POOL_SIZE", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want :7070", cfg.ListenAddr)
	}
	if cfg.PoolSize != 8 {
		t.Errorf("PoolSize = %d, want env override 8", cfg.PoolSize)
	}
	if cfg.HealthTimeout != 2*time.Second {
		t.Errorf("HealthTimeout = %v, want 2s", cfg.HealthTimeout)
	}
	if cfg.TargetsDir != "/etc/dispatch/targets" {
		t.Errorf("TargetsDir = %q", cfg.TargetsDir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DISPATCH_POOL_SIZE", "0"},
		{"DISPATCH_DEFAULT_TIMEOUT", "-1s"},
		{"DISPATCH_HEALTH_TIMEOUT", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := ParseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("missing key %q in log output", key)
		}
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %s", buf.String())
	}
}
