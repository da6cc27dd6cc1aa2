// Package config loads daemon and CLI configuration.
//
// Configuration is resolved in the usual precedence order: defaults,
// then the config file, then QUARIUM_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration.
type Config struct {
	// APIBase is the remote document API host
	APIBase string `mapstructure:"api_base" yaml:"api_base"`

	// SearchBase is the search API host
	SearchBase string `mapstructure:"search_base" yaml:"search_base"`

	// RefreshInterval is the wall-clock period between scheduled
	// refresh cycles
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`

	// BadgePort is the badge websocket server's listen port
	BadgePort int `mapstructure:"badge_port" yaml:"badge_port"`

	// SessionPath is the SQLite session database file
	SessionPath string `mapstructure:"session_path" yaml:"session_path"`

	// LogFile, when set, routes daemon logs to a rotating file
	// instead of stderr
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBase:         "https://api.github.com",
		SearchBase:      "https://api.github.com",
		RefreshInterval: 5 * time.Minute,
		BadgePort:       7117,
		SessionPath:     filepath.Join(baseDir(), "session.db"),
		LogFile:         "",
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

// baseDir is ~/.config/quarium, falling back to the working directory
// when the home directory cannot be resolved.
func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quarium"
	}
	return filepath.Join(home, ".config", "quarium")
}

// Load reads configuration from the given file path. A missing file is
// not an error; defaults and environment variables still apply.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("api_base", def.APIBase)
	v.SetDefault("search_base", def.SearchBase)
	v.SetDefault("refresh_interval", def.RefreshInterval)
	v.SetDefault("badge_port", def.BadgePort)
	v.SetDefault("session_path", def.SessionPath)
	v.SetDefault("log_file", def.LogFile)

	v.SetEnvPrefix("QUARIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.RefreshInterval <= 0 {
		return Config{}, fmt.Errorf("refresh_interval must be positive (got %v)", cfg.RefreshInterval)
	}

	return cfg, nil
}

// Write serializes the configuration to the given file path, creating
// parent directories as needed. Used to seed a default config file.
func Write(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return nil
}
