package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageFile, cfg.StorageBackend)
	assert.Equal(t, "google", cfg.LLMProvider)
	assert.Equal(t, 1000, cfg.LongFormThreshold)
	assert.Equal(t, 180*time.Second, cfg.RequestTimeout)
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("LOG_DIR", t.TempDir())
	t.Setenv("STORAGE_BACKEND", "s3")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvAPIKeyFollowsProvider(t *testing.T) {
	cfg := &Config{LLMProvider: "google", GeminiAPIKey: "g", OpenAIAPIKey: "o"}
	assert.Equal(t, "g", cfg.EnvAPIKey())

	cfg.LLMProvider = "openrouter"
	assert.Equal(t, "o", cfg.EnvAPIKey())
}

func TestInitConfigPersistsWithoutAPIKey(t *testing.T) {
	dir := t.TempDir()
	base := &Config{Port: "9000", DataDir: dir, LogDir: dir, LLMProvider: "google", LLMModel: "gemini-2.5-flash"}

	require.NoError(t, InitConfig(base))
	require.NoError(t, UpdateLLMConfig("openai", map[string]string{
		"api_key":       "sk-secret",
		"default_model": "gpt-4o-mini",
	}))

	current := GetCurrentConfig()
	assert.Equal(t, "openai", current.LLMProvider)
	assert.Equal(t, "sk-secret", current.LLMConfig["api_key"])

	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	var saved AppConfig
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, "gpt-4o-mini", saved.LLMConfig["default_model"])
	assert.NotContains(t, saved.LLMConfig, "api_key")

	// reload keeps the persisted provider settings
	require.NoError(t, InitConfig(base))
	assert.Equal(t, "openai", GetCurrentConfig().LLMProvider)
}

func TestGetCurrentConfigReturnsCopy(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, InitConfig(&Config{DataDir: dir, LLMProvider: "google"}))

	c := GetCurrentConfig()
	c.LLMConfig["default_model"] = "mutated"
	assert.NotEqual(t, "mutated", GetCurrentConfig().LLMConfig["default_model"])
}
