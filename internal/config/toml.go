// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Typing TypingConfig `toml:"typing"`
	Log    LogConfig    `toml:"log"`
}

// TypingConfig maps typing-related settings.
type TypingConfig struct {
	WPM             *float64  `toml:"wpm"`
	WPMVariation    *float64  `toml:"wpm-variation"`
	Fatigue         *float64  `toml:"fatigue"`
	Burst           *float64  `toml:"burst"`
	Hesitation      *float64  `toml:"hesitation"`
	MicroPause      *float64  `toml:"micro-pause"`
	Typo            *float64  `toml:"typo"`
	Countdown       *Duration `toml:"countdown"`
	ProgressEvery   *int      `toml:"progress-every"`
	CheckpointEvery *int      `toml:"checkpoint-every"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level      *string `toml:"level"`
	Format     *string `toml:"format"`
	File       *string `toml:"file"`
	MaxSize    *int    `toml:"max-size"`
	MaxBackups *int    `toml:"max-backups"`
	MaxAge     *int    `toml:"max-age"`
	Compress   *bool   `toml:"compress"`
}

// Duration decodes TOML strings such as "3s" or "1500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
