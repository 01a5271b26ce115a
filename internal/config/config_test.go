package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Typing.WPM != nil {
		t.Fatalf("expected empty config")
	}
}

func TestLoadConfigDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[typing]
wpm = 120
micro-pause = 0.2
countdown = "1500ms"
checkpoint-every = 25

[log]
level = "debug"
compress = true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Typing.WPM == nil || *cfg.Typing.WPM != 120 {
		t.Fatalf("unexpected wpm: %v", cfg.Typing.WPM)
	}
	if cfg.Typing.MicroPause == nil || *cfg.Typing.MicroPause != 0.2 {
		t.Fatalf("unexpected micro-pause: %v", cfg.Typing.MicroPause)
	}
	if cfg.Typing.Countdown == nil || cfg.Typing.Countdown.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected countdown: %v", cfg.Typing.Countdown)
	}
	if cfg.Typing.CheckpointEvery == nil || *cfg.Typing.CheckpointEvery != 25 {
		t.Fatalf("unexpected checkpoint-every: %v", cfg.Typing.CheckpointEvery)
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %v", cfg.Log.Level)
	}
	if cfg.Log.Compress == nil || !*cfg.Log.Compress {
		t.Fatalf("expected compress to be set")
	}
	if cfg.Typing.Fatigue != nil {
		t.Fatalf("expected unset fatigue to stay nil")
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[typing]\nspeed = 3\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "typing.speed") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[typing]\ncountdown = \"soon\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected duration error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvWPM:      " 140 ",
		EnvLogLevel: "warn",
		EnvLogFile:  "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	file := "/tmp/from-file.log"
	cfg := FileConfig{Log: LogConfig{File: &file}}
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Typing.WPM == nil || *cfg.Typing.WPM != 140 {
		t.Fatalf("unexpected wpm: %v", cfg.Typing.WPM)
	}
	if *cfg.Log.Level != "warn" {
		t.Fatalf("unexpected level: %v", *cfg.Log.Level)
	}
	if *cfg.Log.File != file {
		t.Fatalf("empty env value should not override file, got %q", *cfg.Log.File)
	}

	env[EnvWPM] = "fast"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("expected invalid wpm error")
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("AUTOTYPE_TEST_ONLY=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("AUTOTYPE_TEST_ONLY", "")
	_ = os.Unsetenv("AUTOTYPE_TEST_ONLY")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("AUTOTYPE_TEST_ONLY"); got != "from-file" {
		t.Fatalf("expected env from file, got %q", got)
	}
}

func TestDefaultPathsUseXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_STATE_HOME", "/state")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "autotype", "config.toml") {
		t.Fatalf("unexpected config path %q", got)
	}
	if got := DefaultEnvPath(); got != filepath.Join("/cfg", "autotype", ".env") {
		t.Fatalf("unexpected env path %q", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "autotype", "autotype.db") {
		t.Fatalf("unexpected db path %q", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/state", "autotype", "autotype.log") {
		t.Fatalf("unexpected log path %q", got)
	}
}
