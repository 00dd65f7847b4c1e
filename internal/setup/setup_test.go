package setup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, BinaryName)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	return path
}

func TestLoadClientConfigMissingFile(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.MCPServers)
	assert.Empty(t, cfg.MCPServers)
}

func TestLoadClientConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadClientConfig(path)
	assert.Error(t, err)
}

func TestInstallPreservesOtherEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client", "config.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{
  "globalShortcut": "Ctrl+Space",
  "mcpServers": {"other": {"command": "/usr/bin/other"}}
}`), 0o600))

	binary := writeExecutable(t, dir)
	entry, err := Install(InstallOptions{
		ConfigPath: path,
		BinaryPath: binary,
		DataDir:    "/data/risk",
		ModelsDir:  "/data/models",
	})
	require.NoError(t, err)
	assert.Equal(t, binary, entry.Command)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Ctrl+Space", raw["globalShortcut"])

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	require.Contains(t, cfg.MCPServers, "other")
	got := cfg.MCPServers[ServerName]
	assert.Equal(t, binary, got.Command)
	assert.Equal(t, "/data/risk", got.Env[EnvDataDir])
	assert.Equal(t, "/data/models", got.Env[EnvModelsDir])
}

func TestInstallCreatesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	_, err := Install(InstallOptions{ConfigPath: path, BinaryPath: writeExecutable(t, dir)})
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
}

func TestUninstall(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	removed, err := Uninstall(path)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = Install(InstallOptions{ConfigPath: path, BinaryPath: writeExecutable(t, dir)})
	require.NoError(t, err)

	removed, err = Uninstall(path)
	require.NoError(t, err)
	assert.True(t, removed)

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.NotContains(t, cfg.MCPServers, ServerName)
}

func TestGetStatus(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	status, err := GetStatus(path)
	require.NoError(t, err)
	assert.False(t, status.Registered)
	assert.False(t, status.OK())
	assert.Len(t, status.Issues, 1)

	models := filepath.Join(dir, "models")
	require.NoError(t, os.Mkdir(models, 0o755))
	_, err = Install(InstallOptions{ConfigPath: path, BinaryPath: writeExecutable(t, dir), ModelsDir: models})
	require.NoError(t, err)

	status, err = GetStatus(path)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.Equal(t, models, status.ModelsDir)
	assert.True(t, status.OK(), status.Issues)
}

func TestGetStatusReportsMissingBinary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	_, err := Install(InstallOptions{
		ConfigPath: path,
		BinaryPath: filepath.Join(dir, "gone"),
		ModelsDir:  filepath.Join(dir, "no-models"),
	})
	require.NoError(t, err)

	status, err := GetStatus(path)
	require.NoError(t, err)
	assert.True(t, status.Registered)
	assert.False(t, status.OK())
	assert.Len(t, status.Issues, 2)
}
