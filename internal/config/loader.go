package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath returns ~/.parley/config.json.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".parley", "config.json")
}

// Load reads configuration from a JSON or YAML file, chosen by
// extension. An empty path means the default location; a missing file
// yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, err
	}

	// Start from defaults so omitted fields keep their values.
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes configuration to a JSON or YAML file, chosen by
// extension. An empty path means the default location.
func Save(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WorkspacePath resolves the agent workspace, defaulting to
// ~/.parley/workspace.
func (c Config) WorkspacePath() string {
	ws := c.Agent.Workspace
	if ws == "" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".parley", "workspace")
	}
	if strings.HasPrefix(ws, "~") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ws[1:])
	}
	return ws
}
