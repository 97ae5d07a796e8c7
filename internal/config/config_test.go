package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mvir/internal/config"
)

func TestDefaults(t *testing.T) {
	s := config.Defaults()
	assert.Equal(t, "anthropic", s.Provider)
	assert.Equal(t, config.DefaultModel, s.Model)
	assert.True(t, s.Strict)
	assert.Equal(t, 2000, s.MaxTokens)
	assert.Equal(t, 1, s.Workers)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	s, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), s)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mvir.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o
temperature: 0.4
workers: 8
cache_dir: /tmp/mvir-cache
degrade: true
`)
	s, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "gpt-4o", s.Model)
	assert.Equal(t, 0.4, s.Temperature)
	assert.Equal(t, 8, s.Workers)
	assert.Equal(t, "/tmp/mvir-cache", s.CacheDir)
	assert.True(t, s.Degrade)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, 2000, s.MaxTokens)
	assert.True(t, s.Strict)
}

func TestLoad_RejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, "provider: cogitator\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "cogitator"`)
}

func TestLoad_RejectsOutOfRangeTemperature(t *testing.T) {
	path := writeConfig(t, "temperature: 3.5\n")
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "temperature")
}

func TestLoad_RejectsNegativeWorkers(t *testing.T) {
	path := writeConfig(t, "workers: -2\n")
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "provider: [unclosed\n")
	_, err := config.Load(path)
	require.Error(t, err)
}
