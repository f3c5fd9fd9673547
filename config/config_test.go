package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "mcp-server-platform", cfg.Name)
	require.Equal(t, "stdio", cfg.Transport.Type)
	require.Equal(t, "info", cfg.LogLevel)
	require.True(t, cfg.Middleware.Logging)
}

func TestLoadReadsExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcpserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom-server\ntransport:\n  type: http\n  port: 9090\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "custom-server", cfg.Name)
	require.Equal(t, "http", cfg.Transport.Type)
	require.Equal(t, 9090, cfg.Transport.Port)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	t.Setenv("MCP_LOGLEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
}
