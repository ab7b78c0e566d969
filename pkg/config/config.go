// Package config loads the calbot configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the calbot configuration
type Config struct {
	Model    ModelConfig    `json:"model" yaml:"model"`
	CalCom   CalComConfig   `json:"calcom" yaml:"calcom"`
	Attendee AttendeeConfig `json:"attendee" yaml:"attendee"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Debug    DebugConfig    `json:"debug" yaml:"debug"`
}

// ModelConfig contains LLM settings
type ModelConfig struct {
	// APIKey for the model provider. Falls back to OPENAI_API_KEY.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// BaseURL for OpenAI-compatible servers (llama-server, vllm, etc.).
	// Empty means the provider default.
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxRetries  int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// CalComConfig contains booking backend settings
type CalComConfig struct {
	// APIKey for Cal.com. Falls back to CALCOM_API_KEY.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// BaseURLV2 and BaseURLV1 override the two API generations,
	// mainly for tests and self-hosted instances.
	BaseURLV2 string `json:"base_url_v2,omitempty" yaml:"base_url_v2,omitempty"`
	BaseURLV1 string `json:"base_url_v1,omitempty" yaml:"base_url_v1,omitempty"`
	// EventTypeID pins a single bookable event type, skipping fuzzy
	// matching of the meeting reason against the category list.
	EventTypeID    int    `json:"event_type_id,omitempty" yaml:"event_type_id,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	DefaultTZ      string `json:"default_timezone,omitempty" yaml:"default_timezone,omitempty"`
}

// AttendeeConfig holds defaults for the person booking meetings
type AttendeeConfig struct {
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
}

// ServerConfig contains web shell settings
type ServerConfig struct {
	Port int `json:"port,omitempty" yaml:"port,omitempty"`
}

// DebugConfig contains debug settings
type DebugConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Timeout returns the booking backend HTTP timeout.
func (c CalComConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load loads configuration from a file. JSON and YAML are both accepted,
// chosen by extension.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadDefault attempts to load .calbot.json or .calbot.yaml from the
// current directory or home.
func LoadDefault() (*Config, error) {
	candidates := []string{".calbot.json", ".calbot.yaml", ".calbot.yml"}

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return Load(name)
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		for _, name := range candidates {
			homePath := filepath.Join(home, name)
			if _, err := os.Stat(homePath); err == nil {
				return Load(homePath)
			}
		}
	}

	// No file is fine: a usable config can come entirely from env vars.
	config := &Config{}
	config.setDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Model.APIKey == "" {
		c.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Model.Name == "" {
		c.Model.Name = "gpt-4o"
	}
	if c.Model.Temperature == 0 {
		c.Model.Temperature = 0.2
	}
	if c.Model.MaxRetries == 0 {
		c.Model.MaxRetries = 3
	}

	if c.CalCom.APIKey == "" {
		c.CalCom.APIKey = os.Getenv("CALCOM_API_KEY")
	}
	if c.CalCom.TimeoutSeconds == 0 {
		c.CalCom.TimeoutSeconds = 30
	}
	if c.CalCom.DefaultTZ == "" {
		c.CalCom.DefaultTZ = "America/New_York"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Debug.LogLevel == "" {
		c.Debug.LogLevel = "info"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Model.Temperature < 0 || c.Model.Temperature > 2 {
		return fmt.Errorf("invalid temperature: %v (must be between 0 and 2)", c.Model.Temperature)
	}
	if c.CalCom.TimeoutSeconds < 1 {
		return fmt.Errorf("timeout_seconds too small: %d", c.CalCom.TimeoutSeconds)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	return nil
}
