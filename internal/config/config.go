// Package config resolves stockton's runtime configuration.
//
// Precedence, highest first: STOCKTON_* environment variables, the config
// file in STOCKTON_HOME (config.yaml, else config.toml), built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"stockton/pkg/protocol"
	"stockton/pkg/realtime"
)

// DefaultWebhookURL is the development chat webhook used when none is configured.
const DefaultWebhookURL = "https://n8n.anshdhawan.cloud/webhook/stockton-chat-input"

// Config is built once at startup and passed to every component.
type Config struct {
	Home         string        `json:"home"`          // ~/.stockton or STOCKTON_HOME
	File         string        `json:"file"`          // config file that was read, if any
	BackendURL   string        `json:"backend_url"`   // STOCKTON_BACKEND_URL
	BackendKey   string        `json:"-"`             // STOCKTON_BACKEND_KEY
	WebhookURL   string        `json:"webhook_url"`   // STOCKTON_WEBHOOK_URL
	OperatorID   string        `json:"operator_id"`   // STOCKTON_OPERATOR_ID
	ThreadID     string        `json:"thread_id"`     // STOCKTON_THREAD_ID
	PollInterval time.Duration `json:"poll_interval"` // STOCKTON_POLL_INTERVAL
	SettingsDB   string        `json:"settings_db"`   // STOCKTON_SETTINGS_DB
	LogPath      string        `json:"log_path"`      // STOCKTON_LOG_PATH
	LogLevel     string        `json:"log_level"`     // STOCKTON_LOG_LEVEL
}

// fileConfig mirrors Config in its on-disk form.
type fileConfig struct {
	BackendURL   string `yaml:"backend_url" toml:"backend_url"`
	BackendKey   string `yaml:"backend_key" toml:"backend_key"`
	WebhookURL   string `yaml:"webhook_url" toml:"webhook_url"`
	OperatorID   string `yaml:"operator_id" toml:"operator_id"`
	ThreadID     string `yaml:"thread_id" toml:"thread_id"`
	PollInterval string `yaml:"poll_interval" toml:"poll_interval"`
	SettingsDB   string `yaml:"settings_db" toml:"settings_db"`
	LogPath      string `yaml:"log_path" toml:"log_path"`
	LogLevel     string `yaml:"log_level" toml:"log_level"`
}

// Load resolves the configuration from the environment and config file.
func Load() (*Config, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Home:         home,
		WebhookURL:   DefaultWebhookURL,
		OperatorID:   protocol.DefaultOperatorID,
		ThreadID:     protocol.DefaultThreadID,
		PollInterval: protocol.DefaultPollInterval,
		SettingsDB:   filepath.Join(home, protocol.SettingsDBName),
		LogPath:      filepath.Join(home, "stockton.log"),
		LogLevel:     "info",
	}

	fc, path, err := readFile(home)
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.File = path
		if err := cfg.apply(fc, "config file "+path); err != nil {
			return nil, err
		}
	}
	if err := cfg.apply(fromEnv(), "environment"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolveHome() (string, error) {
	if v := os.Getenv("STOCKTON_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.StocktonDir), nil
}

// readFile loads config.yaml or config.toml from home. STOCKTON_CONFIG names
// an explicit file instead; its extension picks the format.
func readFile(home string) (fileConfig, string, error) {
	candidates := []string{filepath.Join(home, "config.yaml"), filepath.Join(home, "config.toml")}
	if explicit := os.Getenv("STOCKTON_CONFIG"); explicit != "" {
		candidates = []string{explicit}
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path) //nolint:gosec // path is built from STOCKTON_HOME or STOCKTON_CONFIG
		if errors.Is(err, fs.ErrNotExist) && len(candidates) > 1 {
			continue
		}
		if err != nil {
			return fileConfig{}, "", fmt.Errorf("read config %s: %w", path, err)
		}
		var fc fileConfig
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			err = toml.Unmarshal(data, &fc)
		default:
			err = yaml.Unmarshal(data, &fc)
		}
		if err != nil {
			return fileConfig{}, "", fmt.Errorf("parse config %s: %w", path, err)
		}
		return fc, path, nil
	}
	return fileConfig{}, "", nil
}

func fromEnv() fileConfig {
	return fileConfig{
		BackendURL:   os.Getenv("STOCKTON_BACKEND_URL"),
		BackendKey:   os.Getenv("STOCKTON_BACKEND_KEY"),
		WebhookURL:   os.Getenv("STOCKTON_WEBHOOK_URL"),
		OperatorID:   os.Getenv("STOCKTON_OPERATOR_ID"),
		ThreadID:     os.Getenv("STOCKTON_THREAD_ID"),
		PollInterval: os.Getenv("STOCKTON_POLL_INTERVAL"),
		SettingsDB:   os.Getenv("STOCKTON_SETTINGS_DB"),
		LogPath:      os.Getenv("STOCKTON_LOG_PATH"),
		LogLevel:     os.Getenv("STOCKTON_LOG_LEVEL"),
	}
}

// apply overlays every non-empty field of fc.
func (c *Config) apply(fc fileConfig, source string) error {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.BackendURL, fc.BackendURL)
	set(&c.BackendKey, fc.BackendKey)
	set(&c.WebhookURL, fc.WebhookURL)
	set(&c.OperatorID, fc.OperatorID)
	set(&c.ThreadID, fc.ThreadID)
	set(&c.SettingsDB, fc.SettingsDB)
	set(&c.LogPath, fc.LogPath)
	set(&c.LogLevel, fc.LogLevel)
	if v := strings.TrimSpace(fc.PollInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: poll_interval %q: %w", source, v, err)
		}
		c.PollInterval = d
	}
	return nil
}

// RequireBackend reports missing backend credentials.
func (c *Config) RequireBackend() error {
	var missing []string
	if c.BackendURL == "" {
		missing = append(missing, "STOCKTON_BACKEND_URL")
	}
	if c.BackendKey == "" {
		missing = append(missing, "STOCKTON_BACKEND_KEY")
	}
	if len(missing) > 0 {
		return &protocol.ValidationError{Fields: missing, Message: "backend not configured: set " + strings.Join(missing, " and ")}
	}
	return nil
}

// RealtimeURL derives the push endpoint from the backend URL.
func (c *Config) RealtimeURL() (string, error) {
	return realtime.Endpoint(c.BackendURL, c.BackendKey)
}
