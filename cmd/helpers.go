package cmd

import (
	"os"
	"time"

	"github.com/parleybot/parley/internal/agent"
	"github.com/parleybot/parley/internal/config"
	"github.com/parleybot/parley/internal/lane"
	"github.com/parleybot/parley/internal/providers"
)

// makeProvider builds the LLM provider from config, falling back to
// environment variables for the API key.
func makeProvider(cfg config.Config) *providers.Provider {
	model := cfg.Agent.Model
	if model == "" {
		model = "anthropic/claude-sonnet-4-5"
	}

	apiKey := cfg.Provider.APIKey
	apiBase := cfg.Provider.APIBase
	providerName := cfg.Provider.Name

	if apiKey == "" {
		if spec := providers.FindByModel(model); spec != nil {
			apiKey = os.Getenv(spec.EnvKey)
			if providerName == "" {
				providerName = spec.Name
			}
		}
	}
	if apiKey == "" {
		for _, envKey := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
			if v := os.Getenv(envKey); v != "" {
				apiKey = v
				break
			}
		}
	}

	return providers.NewProvider(apiKey, apiBase, model, providerName)
}

// agentConfig translates the file config into the loop's config.
func agentConfig(cfg config.Config) agent.Config {
	return agent.Config{
		Workspace:     cfg.WorkspacePath(),
		Model:         cfg.Agent.Model,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
		MaxToolRounds: cfg.Agent.MaxToolRounds,
		MemoryWindow:  cfg.Agent.MemoryWindow,
		LaneMode:      lane.Mode(cfg.Lane.Mode),
		CollectWindow: time.Duration(cfg.Lane.CollectWindowMS) * time.Millisecond,
	}
}

// applyTurnTemplate overrides the wrapper marker and template when the
// config sets them.
func applyTurnTemplate(loop *agent.Loop, cfg config.Config) {
	if cfg.Agent.HistoryMarker != "" {
		loop.Context.Marker = cfg.Agent.HistoryMarker
	}
	if cfg.Agent.TurnTemplate != "" {
		loop.Context.TurnTemplate = cfg.Agent.TurnTemplate
	}
}
