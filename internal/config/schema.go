// Package config handles configuration schema, loading, and saving.
package config

// Config is the top-level parley configuration. Field tags are
// camelCase to match the config file format.
type Config struct {
	Channels ChannelsConfig `json:"channels" yaml:"channels"`
	Agent    AgentConfig    `json:"agent" yaml:"agent"`
	Provider ProviderConfig `json:"provider" yaml:"provider"`
	Bus      BusConfig      `json:"bus" yaml:"bus"`
	Lane     LaneConfig     `json:"lane" yaml:"lane"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
}

// ChannelsConfig holds per-channel settings. Nil means disabled.
type ChannelsConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty" yaml:"telegram,omitempty"`
	WhatsApp *WhatsAppConfig `json:"whatsapp,omitempty" yaml:"whatsapp,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token            string   `json:"token" yaml:"token"`
	AllowFrom        []string `json:"allowFrom,omitempty" yaml:"allowFrom,omitempty"`
	MaxMessageLength int      `json:"maxMessageLength,omitempty" yaml:"maxMessageLength,omitempty"`
}

// WhatsAppConfig holds WhatsApp bridge settings.
type WhatsAppConfig struct {
	BridgeURL   string   `json:"bridgeUrl,omitempty" yaml:"bridgeUrl,omitempty"`
	BridgeToken string   `json:"bridgeToken,omitempty" yaml:"bridgeToken,omitempty"`
	AllowFrom   []string `json:"allowFrom,omitempty" yaml:"allowFrom,omitempty"`
}

// AgentConfig holds agent behavior settings.
type AgentConfig struct {
	Model         string  `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens     int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
	Temperature   float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxToolRounds int     `json:"maxToolRounds,omitempty" yaml:"maxToolRounds,omitempty"`
	MemoryWindow  int     `json:"memoryWindow,omitempty" yaml:"memoryWindow,omitempty"`
	Workspace     string  `json:"workspace,omitempty" yaml:"workspace,omitempty"`

	// HistoryMarker and TurnTemplate control how the live turn is
	// framed for the provider. The rendered form is request-only.
	HistoryMarker string `json:"historyMarker,omitempty" yaml:"historyMarker,omitempty"`
	TurnTemplate  string `json:"turnTemplate,omitempty" yaml:"turnTemplate,omitempty"`
}

// ProviderConfig holds LLM provider credentials and routing.
type ProviderConfig struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	APIKey  string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`
	APIBase string `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
}

// BusConfig holds message bus settings.
type BusConfig struct {
	BufferSize int `json:"bufferSize,omitempty" yaml:"bufferSize,omitempty"`
}

// LaneConfig holds conversation serialization settings.
type LaneConfig struct {
	// Mode is one of "followup", "collect", "interrupt".
	Mode            string `json:"mode,omitempty" yaml:"mode,omitempty"`
	CollectWindowMS int    `json:"collectWindowMs,omitempty" yaml:"collectWindowMs,omitempty"`
}

// RedisConfig holds optional session-metadata cache settings. An empty
// URL disables the cache.
type RedisConfig struct {
	URL      string `json:"url,omitempty" yaml:"url,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Model:         "anthropic/claude-sonnet-4-5",
			MaxTokens:     4096,
			Temperature:   0.7,
			MaxToolRounds: 20,
			MemoryWindow:  50,
		},
		Bus: BusConfig{
			BufferSize: 100,
		},
		Lane: LaneConfig{
			Mode: "followup",
		},
	}
}
