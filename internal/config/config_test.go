// Copyright 2026 The triage Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Full(t *testing.T) {
	path := writeConfig(t, `
host: "127.0.0.1"
port: 9000
debug: true
tenants-dir: "/etc/triage/tenants"
request-retry: 2
llm:
  model: "claude-sonnet-4-5-20250929"
  api-key-env: "MY_KEY"
  timeout-seconds: 5
  max-tokens: 512
trace:
  enabled: true
  db-path: "outcomes.db"
  retention-days: 14
  redact-entities: ["phone_numbers"]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/etc/triage/tenants", cfg.TenantsDir)
	assert.Equal(t, 2, cfg.RequestRetry)
	assert.Equal(t, "MY_KEY", cfg.LLM.APIKeyEnv)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout())
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	assert.True(t, cfg.Trace.Enabled)
	assert.Equal(t, 14, cfg.Trace.RetentionDays)
	assert.Equal(t, []string{"phone_numbers"}, cfg.Trace.RedactEntities)
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "debug: false\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultTenantsDir, cfg.TenantsDir)
	assert.Equal(t, DefaultLLMModel, cfg.LLM.Model)
	assert.Equal(t, DefaultLLMKeyEnv, cfg.LLM.APIKeyEnv)
	assert.Equal(t, DefaultLLMTimeoutSecs, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, DefaultLLMMaxTokens, cfg.LLM.MaxTokens)
	assert.Equal(t, DefaultTraceDB, cfg.Trace.DBPath)
	assert.False(t, cfg.Trace.Enabled)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	path := writeConfig(t, "port: 99999\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_NegativeRetry(t *testing.T) {
	path := writeConfig(t, "request-retry: -1\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, "port: [not a number\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultLLMModel, cfg.LLM.Model)
}

func TestAPIKey(t *testing.T) {
	cfg := Default()
	cfg.LLM.APIKeyEnv = "TRIAGE_TEST_KEY"
	t.Setenv("TRIAGE_TEST_KEY", "sk-test")
	assert.Equal(t, "sk-test", cfg.APIKey())
}
