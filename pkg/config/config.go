/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/freyja-vlog/pkg/compression"
	"github.com/ssargent/freyja-vlog/pkg/index"
	"github.com/ssargent/freyja-vlog/pkg/logging"
	"github.com/ssargent/freyja-vlog/pkg/segment"
)

// Config represents the value log configuration
type Config struct {
	DataDir string  `yaml:"data_dir"`
	Reader  Reader  `yaml:"reader"`
	Writer  Writer  `yaml:"writer"`
	Index   Index   `yaml:"index"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Reader controls how segments are read
type Reader struct {
	BufferSize int  `yaml:"buffer_size"`
	Mmap       bool `yaml:"mmap"`
}

// Writer controls how new segments are written
type Writer struct {
	BufferSize             int     `yaml:"buffer_size"`
	Compression            string  `yaml:"compression"`
	BloomFalsePositiveRate float64 `yaml:"bloom_false_positive_rate"`
}

// Index controls the sparse index built for each segment
type Index struct {
	Interval int `yaml:"interval"`
}

// Server contains HTTP server configuration
type Server struct {
	Bind   string `yaml:"bind"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		Reader: Reader{
			BufferSize: segment.DefaultBufferSize,
		},
		Writer: Writer{
			BufferSize:             segment.DefaultBufferSize,
			Compression:            compression.None.String(),
			BloomFalsePositiveRate: segment.DefaultBloomFalsePositiveRate,
		},
		Index: Index{
			Interval: index.DefaultInterval,
		},
		Server: Server{
			Bind:   "127.0.0.1",
			Port:   8080,
			APIKey: "auto",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Reader.BufferSize < 0 || c.Writer.BufferSize < 0 {
		errs = append(errs, errors.New("buffer sizes must not be negative"))
	}
	if _, err := compression.ParseType(c.Writer.Compression); err != nil {
		errs = append(errs, err)
	}
	if p := c.Writer.BloomFalsePositiveRate; p <= 0 || p >= 1 {
		errs = append(errs, fmt.Errorf("bloom_false_positive_rate must be in (0, 1), got %v", p))
	}
	if c.Index.Interval <= 0 {
		errs = append(errs, fmt.Errorf("index interval must be positive, got %d", c.Index.Interval))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from the specified path. Settings missing
// from the file keep their defaults.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// Validate path to prevent directory traversal
	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	// Ensure config directory exists
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write with secure permissions (0600)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig creates a new configuration with a generated API key and saves it
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32) // 256 bits
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Server.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./vlog.yaml"
	}

	// For Linux/macOS, use ~/.config/vlog/config.yaml
	return filepath.Join(homeDir, ".config", "vlog", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
