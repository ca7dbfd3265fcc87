package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so settings can use "1.5s"-style values
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// ResponderConfig holds the text-generation API configuration
type ResponderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// OrchestratorConfig tunes turn delivery and the reaction cascade
type OrchestratorConfig struct {
	PacingInterval      Duration `yaml:"pacing_interval"`
	ResponderTimeout    Duration `yaml:"responder_timeout"`
	ReactionProbability *float64 `yaml:"reaction_probability"`
	ReactionDelayMin    Duration `yaml:"reaction_delay_min"`
	ReactionDelayMax    Duration `yaml:"reaction_delay_max"`
	HistoryWindow       int      `yaml:"history_window"`
}

// QuotaConfig tunes the message quota gate
type QuotaConfig struct {
	Limit  int      `yaml:"limit"`
	Window Duration `yaml:"window"`
}

// Config holds all application configuration
type Config struct {
	Responder    ResponderConfig    `yaml:"responder"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Quota        QuotaConfig        `yaml:"quota"`
	DBPath       string             `yaml:"-"`
	Port         string             `yaml:"-"`
}

// Load loads configuration from environment and the optional settings file
func Load() (*Config, error) {
	cfg := &Config{
		Orchestrator: OrchestratorConfig{
			PacingInterval:   Duration(1500 * time.Millisecond),
			ResponderTimeout: Duration(20 * time.Second),
			ReactionDelayMin: Duration(2 * time.Second),
			ReactionDelayMax: Duration(5 * time.Second),
			HistoryWindow:    5,
		},
		Quota: QuotaConfig{
			Limit:  50,
			Window: Duration(24 * time.Hour),
		},
	}

	settingsPath := os.Getenv("SETTINGS_PATH")
	if settingsPath == "" {
		settingsPath = "settings/config.yaml"
	}

	if data, err := os.ReadFile(settingsPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse settings file %s: %w", settingsPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Environment overrides the settings file
	if key := os.Getenv("RESPONDER_API_KEY"); key != "" {
		cfg.Responder.APIKey = key
	}
	if url := os.Getenv("RESPONDER_BASE_URL"); url != "" {
		cfg.Responder.BaseURL = url
	}
	if model := os.Getenv("RESPONDER_MODEL"); model != "" {
		cfg.Responder.Model = model
	}

	cfg.DBPath = getEnvOrDefault("DB_PATH", "data/app.db")
	cfg.Port = getEnvOrDefault("PORT", "8080")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReactionProbabilityOrDefault returns the configured reaction
// probability, defaulting to 1.0 (always react)
func (c *Config) ReactionProbabilityOrDefault() float64 {
	if c.Orchestrator.ReactionProbability == nil {
		return 1.0
	}
	return *c.Orchestrator.ReactionProbability
}

func (c *Config) validate() error {
	if p := c.Orchestrator.ReactionProbability; p != nil && (*p < 0 || *p > 1) {
		return fmt.Errorf("reaction_probability must be in [0,1], got %v", *p)
	}
	if c.Orchestrator.ReactionDelayMax < c.Orchestrator.ReactionDelayMin {
		return fmt.Errorf("reaction_delay_max must be >= reaction_delay_min")
	}
	if c.Orchestrator.HistoryWindow < 0 {
		return fmt.Errorf("history_window must be >= 0")
	}
	if c.Quota.Limit <= 0 {
		return fmt.Errorf("quota limit must be positive, got %d", c.Quota.Limit)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
