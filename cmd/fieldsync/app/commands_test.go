package app

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersionCmd_JSON(t *testing.T) {
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version", "--format", "json"})
	require.NoError(t, cmd.Execute())

	var info map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "protocol_version")
}

func TestLoadConfig_RequiresPath(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration file is required")
}

func TestStatusCmd_SQLite(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  endpoint: https://sync.example.com
tenants:
  - id: acme
storage:
  type: sqlite
  sqlite:
    path: `+filepath.Join(dir, "fieldsync.db")+`
  statusDir: `+filepath.Join(dir, "status")+`
`)

	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"status", "--config", path})
	require.NoError(t, cmd.Execute())

	var report map[string]tenantReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Contains(t, report, "acme")
	assert.Equal(t, "acme", report["acme"].Status.TenantID)
	assert.Zero(t, report["acme"].Pending)
}

func TestMigrateCmd_SQLite(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	path := writeConfig(t, `
server:
  endpoint: https://sync.example.com
tenants:
  - id: acme
storage:
  type: sqlite
  sqlite:
    path: `+filepath.Join(dir, "fieldsync.db")+`
`)

	up := NewRootCmd()
	up.SetArgs([]string{"migrate", "up", "--config", path})
	require.NoError(t, up.Execute())

	down := NewRootCmd()
	down.SetArgs([]string{"migrate", "down", "--config", path, "--yes"})
	require.NoError(t, down.Execute())
}

func TestMigrateCmd_MemoryStorage(t *testing.T) {
	t.Cleanup(viper.Reset)
	path := writeConfig(t, `
server:
  endpoint: https://sync.example.com
tenants:
  - id: acme
storage:
  type: memory
`)

	cmd := NewRootCmd()
	cmd.SetArgs([]string{"migrate", "up", "--config", path})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no schema to migrate")
}

func TestStatusCmd_UnknownTenant(t *testing.T) {
	t.Cleanup(viper.Reset)
	path := writeConfig(t, `
server:
  endpoint: https://sync.example.com
tenants:
  - id: acme
storage:
  type: memory
`)

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "--config", path, "--tenant", "globex"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}
