// Package config provides configuration handling for filegate.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config represents the application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Storage configuration
	Storage StorageConfig `json:"storage"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Host to bind to
	Host string `json:"host"`

	// Port to listen on
	Port int `json:"port"`

	// TLS configuration
	TLS TLSConfig `json:"tls"`
}

// TLSConfig contains TLS settings
type TLSConfig struct {
	// Enabled indicates whether TLS is enabled
	Enabled bool `json:"enabled"`

	// CertFile is the path to the certificate file
	CertFile string `json:"cert_file"`

	// KeyFile is the path to the key file
	KeyFile string `json:"key_file"`
}

// StorageConfig contains account registry settings
type StorageConfig struct {
	// Type of account store to use
	Type string `json:"type"` // "memory", "file"

	// AccountsFile is the path to the accounts registry (file type only)
	AccountsFile string `json:"accounts_file"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	// JWTSecret is the secret for signing session tokens
	JWTSecret string `json:"jwt_secret"`

	// TokenExpiration is the session token lifetime in hours
	TokenExpiration int `json:"token_expiration"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	// Level is the logging level
	Level string `json:"level"` // "debug", "info", "warn", "error"

	// Format is the log format
	Format string `json:"format"` // "json", "text"
}

// LoadConfig loads the configuration from a file and applies environment
// overrides on top.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
			TLS: TLSConfig{
				Enabled: false,
			},
		},
		Storage: StorageConfig{
			Type:         "file",
			AccountsFile: "./data/accounts.yaml",
		},
		Auth: AuthConfig{
			TokenExpiration: 24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
	cfg.applyEnv()
	return cfg
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv lets deployments override file values, mainly so secrets stay out
// of the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("FILEGATE_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("FILEGATE_ACCOUNTS_FILE"); v != "" {
		c.Storage.AccountsFile = v
	}
	if v := os.Getenv("FILEGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}
