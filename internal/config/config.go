package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models nextventure.yml.
type Config struct {
	Economy struct {
		StartingTickets int `yaml:"starting_tickets"`
		JoinXP          int `yaml:"join_xp"`
		LevelUpTickets  int `yaml:"level_up_tickets"`
	} `yaml:"economy"`
	Ventures struct {
		DefaultTicketCost      int `yaml:"default_ticket_cost"`
		DefaultMaxParticipants int `yaml:"default_max_participants"`
		DefaultTimeLimit       int `yaml:"default_time_limit_seconds"`
	} `yaml:"ventures"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes one notification sink endpoint.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
}

// Path returns the config file location under the workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".nextventure", "nextventure.yml")
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.Economy.StartingTickets = 5
	cfg.Economy.JoinXP = 10
	cfg.Economy.LevelUpTickets = 2
	cfg.Ventures.DefaultTicketCost = 1
	cfg.Ventures.DefaultMaxParticipants = 50
	cfg.Ventures.DefaultTimeLimit = 3600
	return cfg
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Economy.StartingTickets < 0 {
		return fmt.Errorf("economy.starting_tickets must not be negative")
	}
	if c.Economy.JoinXP < 0 {
		return fmt.Errorf("economy.join_xp must not be negative")
	}
	if c.Ventures.DefaultTicketCost < 0 {
		return fmt.Errorf("ventures.default_ticket_cost must not be negative")
	}
	if c.Ventures.DefaultMaxParticipants < 1 {
		return fmt.Errorf("ventures.default_max_participants must be at least 1")
	}
	if c.Ventures.DefaultTimeLimit < 1 {
		return fmt.Errorf("ventures.default_time_limit_seconds must be at least 1")
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// ToYAML renders the config for export.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
