package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v, err := NewViper("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, "mock", cfg.LLMBackend)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, 10, cfg.HistoryWindow)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUXILIUM_API_KEY", "secret")
	t.Setenv("AUXILIUM_STORAGE_BACKEND", "memory")
	t.Setenv("AUXILIUM_HISTORY_WINDOW", "4")

	v, err := NewViper("")
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.LLMBackend)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 4, cfg.HistoryWindow)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auxilium.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9090\"\nvoice: Puck\n"), 0o600))

	v, err := NewViper(path)
	require.NoError(t, err)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "Puck", cfg.Voice)
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("AUXILIUM_LLM_BACKEND", "vertex")

	v, err := NewViper("")
	require.NoError(t, err)

	_, err = Load(v)
	assert.Error(t, err)
}
