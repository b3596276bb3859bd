package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 50, cfg.Agent.MemoryWindow)
	assert.Equal(t, "followup", cfg.Lane.Mode)
}

func TestLoadSave_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := DefaultConfig()
	cfg.Channels.Telegram = &TelegramConfig{Token: "tok", AllowFrom: []string{"alice"}}
	cfg.Provider.APIKey = "sk-or-v1-test"
	cfg.Agent.MemoryWindow = 7
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, loaded.Channels.Telegram)
	assert.Equal(t, "tok", loaded.Channels.Telegram.Token)
	assert.Equal(t, 7, loaded.Agent.MemoryWindow)
	assert.Equal(t, "sk-or-v1-test", loaded.Provider.APIKey)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
agent:
  model: openai/gpt-4o
  memoryWindow: 12
channels:
  whatsapp:
    bridgeUrl: ws://localhost:9001
lane:
  mode: collect
  collectWindowMs: 1500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", cfg.Agent.Model)
	assert.Equal(t, 12, cfg.Agent.MemoryWindow)
	// Omitted fields keep defaults.
	assert.Equal(t, 4096, cfg.Agent.MaxTokens)
	require.NotNil(t, cfg.Channels.WhatsApp)
	assert.Equal(t, "ws://localhost:9001", cfg.Channels.WhatsApp.BridgeURL)
	assert.Equal(t, "collect", cfg.Lane.Mode)
	assert.Equal(t, 1500, cfg.Lane.CollectWindowMS)
}

func TestLoad_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestWorkspacePath(t *testing.T) {
	home, _ := os.UserHomeDir()

	var cfg Config
	assert.Equal(t, filepath.Join(home, ".parley", "workspace"), cfg.WorkspacePath())

	cfg.Agent.Workspace = "~/custom/ws"
	assert.Equal(t, filepath.Join(home, "custom", "ws"), cfg.WorkspacePath())

	cfg.Agent.Workspace = "/abs/ws"
	assert.Equal(t, "/abs/ws", cfg.WorkspacePath())
}
