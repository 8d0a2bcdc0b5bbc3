package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, WriteConfigFile(&Config{}, path))

	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":19132", c.Server.ListenAddr)
	assert.Equal(t, uint16(1446), c.Engine.MTU)
	assert.Equal(t, "info", c.Logging.Level)
}

func TestLoadConfigRejectsBadLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := GenerateDefaultConfig()
	cfg.Logging.Level = "verbose"
	require.NoError(t, WriteConfigFile(cfg, path))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestGenerateDefaultConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	want := GenerateDefaultConfig()
	require.NoError(t, WriteConfigFile(want, path))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
