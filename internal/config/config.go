// Package config provides YAML-based configuration loading for the wellness
// chat server and CLI.  Values from the file are overridden by the
// environment variables the deployment already uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from config.yaml.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Completion CompletionConfig `yaml:"completion"`
	Chat       ChatConfig       `yaml:"chat"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// SweepOff as database.sweep_schedule disables the idle-session sweep.
const SweepOff = "off"

// DatabaseConfig selects the session store.
type DatabaseConfig struct {
	Driver        string        `yaml:"driver"`
	URL           string        `yaml:"url"`
	NotifyChannel string        `yaml:"notify_channel"`
	Retention     time.Duration `yaml:"retention"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// CompletionConfig selects and tunes the language model provider.
type CompletionConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ChatConfig holds client-side session settings.
type ChatConfig struct {
	MaxTurns     int    `yaml:"max_turns"`
	ServerURL    string `yaml:"server_url"`
	IdentityPath string `yaml:"identity_path"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Load reads a YAML config file from path and returns a validated Config.
// An empty path yields the defaults plus environment overrides.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv layers environment variables over the file values.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
		if c.Database.Driver == "" {
			c.Database.Driver = "postgres"
		}
	}
	if v, ok := lookup("OPENAI_MODEL_CHAT"); ok && v != "" && c.Completion.provider() == "openai" {
		c.Completion.Model = v
	}
	if c.Completion.APIKey == "" {
		key := "OPENAI_API_KEY"
		if c.Completion.provider() == "gemini" {
			key = "GEMINI_API_KEY"
		}
		if v, ok := lookup(key); ok {
			c.Completion.APIKey = v
		}
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("CHAT_SERVER_URL"); ok && v != "" {
		c.Chat.ServerURL = v
	}
	return nil
}

func (c CompletionConfig) provider() string {
	if c.Provider == "" {
		return "openai"
	}
	return strings.ToLower(c.Provider)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.URL == "" && c.Database.Driver == "sqlite" {
		c.Database.URL = "wellness-chat.db"
	}
	if c.Database.Retention == 0 {
		c.Database.Retention = 30 * 24 * time.Hour
	}
	switch strings.ToLower(strings.TrimSpace(c.Database.SweepSchedule)) {
	case "":
		c.Database.SweepSchedule = "0 3 * * *"
	case SweepOff:
		c.Database.SweepSchedule = SweepOff
	}
	c.Completion.Provider = c.Completion.provider()
	if c.Completion.Timeout == 0 {
		c.Completion.Timeout = 60 * time.Second
	}
	if c.Chat.MaxTurns == 0 {
		c.Chat.MaxTurns = 10
	}
	if c.Chat.ServerURL == "" {
		c.Chat.ServerURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Chat.IdentityPath == "" {
		c.Chat.IdentityPath = defaultIdentityPath()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func defaultIdentityPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wellness-chat", "identity.db")
	}
	return filepath.Join(home, ".wellness-chat", "identity.db")
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be postgres or sqlite", c.Database.Driver))
	}
	if c.Database.URL == "" {
		errs = append(errs, "database.url is required")
	}
	if c.Database.NotifyChannel != "" && c.Database.Driver != "postgres" {
		errs = append(errs, "database.notify_channel requires the postgres driver")
	}
	if c.Database.Retention < 0 {
		errs = append(errs, "database.retention must not be negative")
	}
	switch c.Completion.Provider {
	case "openai", "gemini":
	default:
		errs = append(errs, fmt.Sprintf("completion.provider %q must be openai or gemini", c.Completion.Provider))
	}
	if c.Completion.Timeout < 0 {
		errs = append(errs, "completion.timeout must not be negative")
	}
	if c.Chat.MaxTurns < 0 {
		errs = append(errs, "chat.max_turns must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
