package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := writeConfig(t, "environment: test\n")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Environment)
	assert.Equal(t, "https://graph.facebook.com", cfg.Graph.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Graph.Timeout)
	assert.Equal(t, DefaultLeadFields, cfg.Graph.LeadFields)
	assert.Equal(t, "mobile_no", cfg.Sync.PhoneField)
	assert.Equal(t, []string{"Lead", "CRM Lead"}, cfg.Sync.RecordTypes)
	assert.Equal(t, 3, cfg.Sync.Dispatch.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Sync.Dispatch.BackoffStep)
	assert.Equal(t, "ERP Next", cfg.Sync.Dispatch.LeadEventSource)
	assert.Equal(t, 1, cfg.WorkerPools.Sync.PoolSize)
	assert.Equal(t, 5, cfg.NATS.Triggers.MaxDeliver)
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	dir := writeConfig(t, `
graph:
  version: v19.0
sync:
  phoneField: phone
  dispatch:
    backoffStep: 1s
`)
	t.Setenv("META_APP_ACCESS_TOKEN", "app-token")
	t.Setenv("GRAPH_VERSION", "v20.0")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "phone", cfg.Sync.PhoneField)
	assert.Equal(t, time.Second, cfg.Sync.Dispatch.BackoffStep)
	assert.Equal(t, "v20.0", cfg.Graph.Version)
	assert.Equal(t, "app-token", cfg.Graph.AppAccessToken)
}

func TestLoadConfig_RejectsUnknownPhoneField(t *testing.T) {
	dir := writeConfig(t, "sync:\n  phoneField: fax\n")

	_, err := LoadConfig(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.phoneField")
}
