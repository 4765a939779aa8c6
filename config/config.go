// Copyright 2025 The AgentCanvas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variable names.
const (
	EnvAgentURL     = "A2A_AGENT_URL"
	EnvAgentEnabled = "A2A_ENABLED"
	EnvTimeout      = "A2A_TIMEOUT"
	EnvMaxRetries   = "A2A_MAX_RETRIES"
	EnvMaxHistory   = "A2A_MAX_HISTORY"
	EnvWebhookBase  = "WEBHOOK_BASE_URL"
	EnvListenAddr   = "LISTEN_ADDR"
	EnvStorage      = "STORAGE"
	EnvStorageDSN   = "STORAGE_DSN"
)

// Defaults applied when the environment does not say otherwise.
const (
	DefaultListenAddr = ":8080"
	DefaultStorage    = "sqlite"
	DefaultStorageDSN = "agentcanvas.db"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultMaxHistory = 10
)

// AgentConfig configures the connection to the remote A2A agent.
type AgentConfig struct {
	// URL is the remote agent's base URL. Required when Enabled.
	URL string

	// Enabled gates the bridge entirely. Off by default so the service can
	// run webhook-only.
	Enabled bool

	// Timeout bounds each protocol call.
	Timeout time.Duration

	// MaxRetries is the total number of unary attempts.
	MaxRetries int

	// MaxHistory caps the conversation turns folded into each prompt.
	MaxHistory int
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Dialect is one of sqlite, postgres, mysql.
	Dialect string

	// DSN is the driver connection string.
	DSN string
}

// Config is the full service configuration.
type Config struct {
	Agent   AgentConfig
	Storage StorageConfig

	// WebhookBaseURL is the externally reachable base for webhook callbacks.
	WebhookBaseURL string

	// ListenAddr is the HTTP bind address.
	ListenAddr string
}

// Load reads configuration from the environment, applying defaults.
// .env files should already have been loaded via LoadDotEnv.
func Load() (*Config, error) {
	cfg := &Config{
		Agent: AgentConfig{
			URL:        os.Getenv(EnvAgentURL),
			Enabled:    envBool(EnvAgentEnabled, false),
			Timeout:    DefaultTimeout,
			MaxRetries: DefaultMaxRetries,
			MaxHistory: DefaultMaxHistory,
		},
		Storage: StorageConfig{
			Dialect: envOr(EnvStorage, DefaultStorage),
			DSN:     envOr(EnvStorageDSN, DefaultStorageDSN),
		},
		WebhookBaseURL: os.Getenv(EnvWebhookBase),
		ListenAddr:     envOr(EnvListenAddr, DefaultListenAddr),
	}

	if raw := os.Getenv(EnvTimeout); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		cfg.Agent.Timeout = d
	}
	if raw := os.Getenv(EnvMaxRetries); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxRetries, err)
		}
		cfg.Agent.MaxRetries = n
	}
	if raw := os.Getenv(EnvMaxHistory); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvMaxHistory, err)
		}
		cfg.Agent.MaxHistory = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Agent.Enabled && c.Agent.URL == "" {
		return fmt.Errorf("%s is required when %s is true", EnvAgentURL, EnvAgentEnabled)
	}
	switch c.Storage.Dialect {
	case "sqlite", "sqlite3", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported %s: %s (supported: sqlite, postgres, mysql)", EnvStorage, c.Storage.Dialect)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvTimeout)
	}
	if c.Agent.MaxRetries <= 0 {
		return fmt.Errorf("%s must be positive", EnvMaxRetries)
	}
	return nil
}

// DriverName maps the configured dialect to its database/sql driver.
func (c *StorageConfig) DriverName() string {
	switch c.Dialect {
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return c.Dialect
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
