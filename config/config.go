// Package config loads settings for the rointe-test command from a JSON
// file or from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
)

// Config represents the tool configuration.
type Config struct {
	Credentials CredentialsConfig `json:"credentials"`
	Endpoints   EndpointsConfig   `json:"endpoints"`
	Log         LogConfig         `json:"log"`
}

// CredentialsConfig contains the Rointe Connect account credentials.
type CredentialsConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// EndpointsConfig overrides the cloud endpoints, mostly for pointing the
// tool at a mock server. Empty values fall back to the production cloud.
type EndpointsConfig struct {
	AuthBaseURL    string `json:"auth_base_url"`
	RefreshBaseURL string `json:"refresh_base_url"`
	DataBaseURL    string `json:"data_base_url"`
	APIKey         string `json:"api_key"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "text"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidConfig)
	}
	return nil
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigFileNotFound
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return &cfg, nil
}

// LoadFromEnv builds configuration from ROINTE_* environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Credentials: CredentialsConfig{
			Username: os.Getenv("ROINTE_USERNAME"),
			Password: os.Getenv("ROINTE_PASSWORD"),
		},
		Endpoints: EndpointsConfig{
			AuthBaseURL:    os.Getenv("ROINTE_AUTH_BASE_URL"),
			RefreshBaseURL: os.Getenv("ROINTE_REFRESH_BASE_URL"),
			DataBaseURL:    os.Getenv("ROINTE_DATA_BASE_URL"),
			APIKey:         os.Getenv("ROINTE_API_KEY"),
		},
		Log: LogConfig{
			Level:  os.Getenv("ROINTE_LOG_LEVEL"),
			Format: os.Getenv("ROINTE_LOG_FORMAT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
