// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the triage server.
// It handles loading and parsing the YAML configuration file and provides
// structured access to application settings: the HTTP listener, the
// language-model client, tenant profile location, and trace persistence.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces. Use "127.0.0.1" for
	// local-only access.
	Host string `yaml:"host"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile controls whether application logs are written to rotating
	// files or stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// TenantsDir is the directory containing per-tenant profile YAML files.
	TenantsDir string `yaml:"tenants-dir"`

	// RequestRetry defines how many times the API layer re-runs a
	// classification whose model path failed before accepting the rule-based
	// result. The classification core itself never retries.
	RequestRetry int `yaml:"request-retry"`

	// LLM configures the language-understanding call.
	LLM LLMConfig `yaml:"llm"`

	// Trace configures best-effort persistence of classification outcomes.
	Trace TraceConfig `yaml:"trace"`
}

// LLMConfig holds settings for the external language-understanding call.
type LLMConfig struct {
	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the provider API key.
	// The key itself never lives in the config file.
	APIKeyEnv string `yaml:"api-key-env"`

	// TimeoutSeconds bounds a single classification call. On expiry the call
	// is abandoned and the rule-based fallback is used.
	TimeoutSeconds int `yaml:"timeout-seconds"`

	// MaxTokens caps the model response size.
	MaxTokens int `yaml:"max-tokens"`
}

// Timeout returns the configured call timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TraceConfig holds settings for the SQLite trace store.
type TraceConfig struct {
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database file, resolved relative to the writable
	// data directory when not absolute.
	DBPath string `yaml:"db-path"`

	// RetentionDays is how long outcome records are kept. Zero uses the
	// default of 90 days.
	RetentionDays int `yaml:"retention-days"`

	// RedactEntities lists entity type names whose extracted values are
	// masked before persistence.
	RedactEntities []string `yaml:"redact-entities"`
}

// Defaults applied when the YAML file omits a value.
const (
	DefaultPort           = 8317
	DefaultTenantsDir     = "tenants"
	DefaultLLMModel       = "claude-sonnet-4-5-20250929"
	DefaultLLMKeyEnv      = "ANTHROPIC_API_KEY"
	DefaultLLMTimeoutSecs = 20
	DefaultLLMMaxTokens   = 1024
	DefaultTraceDB        = "traces.db"
)

// LoadConfig reads a YAML configuration file from the given path and returns
// a Config populated with its values plus defaults for anything omitted.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.RequestRetry < 0 {
		return nil, fmt.Errorf("request-retry must not be negative: %d", cfg.RequestRetry)
	}
	return &cfg, nil
}

// Default returns a Config with every field at its default value, used when
// the server starts without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TenantsDir == "" {
		c.TenantsDir = DefaultTenantsDir
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModel
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = DefaultLLMKeyEnv
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = DefaultLLMTimeoutSecs
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = DefaultLLMMaxTokens
	}
	if c.Trace.DBPath == "" {
		c.Trace.DBPath = DefaultTraceDB
	}
}

// APIKey resolves the provider API key from the environment.
func (c *Config) APIKey() string {
	return os.Getenv(c.LLM.APIKeyEnv)
}
