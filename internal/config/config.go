// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir              string // Base directory for databases (always absolute)
	Port                 int
	LogLevel             string
	DevMode              bool
	LedgerURL            string
	ProtocolDirectoryURL string
	PriceStreamURL       string // Optional; empty disables the live price feed
	TickInterval         time.Duration
	Backup               *BackupConfig
}

// BackupConfig holds store-backup configuration. Backups are disabled when
// no bucket is configured.
type BackupConfig struct {
	Bucket    string
	Endpoint  string // S3-compatible endpoint (empty for AWS)
	Region    string
	AccessKey string
	SecretKey string
	Keep      int // Number of backups to retain
}

// Enabled reports whether backups are configured.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables, with .env support.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("HELM_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:              absDataDir,
		Port:                 getEnvAsInt("HELM_PORT", 8080),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		LedgerURL:            getEnv("LEDGER_URL", "http://localhost:9100"),
		ProtocolDirectoryURL: getEnv("PROTOCOL_DIRECTORY_URL", "http://localhost:9101"),
		PriceStreamURL:       getEnv("PRICE_STREAM_URL", ""),
		TickInterval:         getEnvAsDuration("TICK_INTERVAL", 30*time.Second),
		Backup: &BackupConfig{
			Bucket:    getEnv("BACKUP_BUCKET", ""),
			Endpoint:  getEnv("BACKUP_ENDPOINT", ""),
			Region:    getEnv("BACKUP_REGION", "auto"),
			AccessKey: getEnv("BACKUP_ACCESS_KEY", ""),
			SecretKey: getEnv("BACKUP_SECRET_KEY", ""),
			Keep:      getEnvAsInt("BACKUP_KEEP", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.TickInterval < time.Second {
		return fmt.Errorf("tick interval must be at least 1s, got %s", c.TickInterval)
	}
	if c.Backup.Enabled() && c.Backup.AccessKey == "" {
		return fmt.Errorf("backup bucket configured without credentials")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
