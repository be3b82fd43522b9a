// Package config loads sidetree-resolver's runtime configuration. Shape
// and precedence (defaults, then environment overrides, then directory
// creation) are carried over from the teacher's own config.go,
// generalized from CHAR-node RPC settings to this module's store/ledger/
// logging settings.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds sidetree-resolver's runtime configuration.
type Config struct {
	DataDir  DataDirConfig
	Database DatabaseConfig
	Polling  PollingConfig
	LogLevel slog.Level
}

// DataDirConfig mirrors the teacher's DataDirConfig, minus KeysDir: this
// module never holds private keys of its own, it only verifies reveals.
type DataDirConfig struct {
	Path   string
	DBPath string
}

// DatabaseConfig mirrors the teacher's DatabaseConfig.
type DatabaseConfig struct {
	Path string
}

// PollingConfig controls how the ingest loop drains a ledger.Ledger
// subscription — the same three knobs the teacher's PollingConfig
// exposed for polling CHAR ballots.
type PollingConfig struct {
	MaxAttempts    int
	IntervalMS     int
	TimeoutSeconds int
}

// DefaultConfig returns the configuration used when no overrides are
// present, matching the teacher's DefaultConfig shape.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".sidetree-resolver")

	return &Config{
		DataDir: DataDirConfig{
			Path:   dataDir,
			DBPath: filepath.Join(dataDir, "operations.db"),
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "operations.db"),
		},
		Polling: PollingConfig{
			MaxAttempts:    300, // poll for up to 30 seconds
			IntervalMS:     100, // check every 100ms
			TimeoutSeconds: 10,
		},
		LogLevel: slog.LevelInfo,
	}
}

// LoadConfig loads configuration with environment overrides, matching the
// teacher's LoadConfig precedence (defaults, then env, then directory
// creation). godotenv/autoload populates process env from a .env file
// before this runs, if one is present.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	if val := os.Getenv("SIDETREE_DATA_DIR"); val != "" {
		cfg.DataDir.Path = val
		cfg.DataDir.DBPath = filepath.Join(val, "operations.db")
		cfg.Database.Path = cfg.DataDir.DBPath
	}
	if val := os.Getenv("SIDETREE_DB_PATH"); val != "" {
		cfg.Database.Path = val
		cfg.DataDir.DBPath = val
	}
	if val := os.Getenv("SIDETREE_LOG_LEVEL"); val != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(val)); err == nil {
			cfg.LogLevel = lvl
		}
	}

	if err := os.MkdirAll(cfg.DataDir.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	return cfg, nil
}
