package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the config file.
const (
	EnvWPM      = "AUTOTYPE_WPM"
	EnvLogLevel = "AUTOTYPE_LOG_LEVEL"
	EnvLogFile  = "AUTOTYPE_LOG_FILE"
)

// LoadEnvFile loads KEY=value pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays environment overrides onto cfg. lookup is usually os.LookupEnv.
func (cfg *FileConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookupTrimmed(lookup, EnvWPM); ok {
		wpm, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvWPM, err)
		}
		cfg.Typing.WPM = &wpm
	}
	if v, ok := lookupTrimmed(lookup, EnvLogLevel); ok {
		cfg.Log.Level = &v
	}
	if v, ok := lookupTrimmed(lookup, EnvLogFile); ok {
		cfg.Log.File = &v
	}
	return nil
}

func lookupTrimmed(lookup func(string) (string, bool), key string) (string, bool) {
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
