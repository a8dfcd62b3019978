// Package config loads server and client configuration from a YAML file,
// environment variables, and built-in defaults, via Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the recognized configuration options for both the upload
// server and the upload client CLI (spec.md §6).
type Config struct {
	ChunkSizeMB    int           `mapstructure:"chunk_size_mb"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	UploadsDir     string        `mapstructure:"uploads_dir"`
	ServerPort     int           `mapstructure:"server_port"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	StaleTTL       time.Duration `mapstructure:"stale_ttl"`
	StoreBackend   string        `mapstructure:"store_backend"` // "memory" or "badger"
	StorePath      string        `mapstructure:"store_path"`
	RateLimitMbps  float64       `mapstructure:"rate_limit_mbps"`
}

// ChunkSize returns the configured chunk size in bytes.
func (c *Config) ChunkSize() int64 {
	return int64(c.ChunkSizeMB) * 1024 * 1024
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ChunkSizeMB:    5, // 5 MiB
		MaxConcurrency: 3,
		MaxRetries:     3,
		UploadsDir:     "./uploads",
		ServerPort:     4000,
		APIBaseURL:     "http://localhost:4000",
		StaleTTL:       24 * time.Hour,
		StoreBackend:   "memory",
		StorePath:      "./uploads/.store",
		RateLimitMbps:  0, // unlimited
	}
}

// LoadConfig loads configuration from file or creates default config.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("uploadctl")
	viper.SetConfigType("yaml")

	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".config", "upload"))
	}
	viper.AddConfigPath("/etc/upload")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("UPLOAD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file.
func SaveConfig(cfg *Config) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "upload")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "uploadctl.yaml")

	viper.Set("chunk_size_mb", cfg.ChunkSizeMB)
	viper.Set("max_concurrency", cfg.MaxConcurrency)
	viper.Set("max_retries", cfg.MaxRetries)
	viper.Set("uploads_dir", cfg.UploadsDir)
	viper.Set("server_port", cfg.ServerPort)
	viper.Set("api_base_url", cfg.APIBaseURL)
	viper.Set("stale_ttl", cfg.StaleTTL)
	viper.Set("store_backend", cfg.StoreBackend)
	viper.Set("store_path", cfg.StorePath)
	viper.Set("rate_limit_mbps", cfg.RateLimitMbps)

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("cannot write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the path to the config file in use, or the default
// location if none has been loaded yet.
func GetConfigPath() string {
	if viper.ConfigFileUsed() != "" {
		return viper.ConfigFileUsed()
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "~/.config/upload/uploadctl.yaml"
	}

	return filepath.Join(homeDir, ".config", "upload", "uploadctl.yaml")
}
