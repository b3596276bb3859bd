package providers

import "strings"

// ProviderSpec holds routing metadata for one LLM provider.
type ProviderSpec struct {
	Name              string   // config name, e.g. "openrouter"
	Keywords          []string // lowercase model-name keywords
	EnvKey            string   // env var holding the API key
	DisplayName       string   // shown in status output
	IsGateway         bool     // can route any model
	DetectByKeyPrefix string   // api-key prefix that identifies the gateway
	DetectByBaseKW    string   // substring of api_base that identifies it
	DefaultAPIBase    string   // fallback base URL
}

// Label returns a display label for status output.
func (s *ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// Specs is the provider registry. Order is priority: gateways first.
var Specs = []*ProviderSpec{
	{
		Name: "openrouter", Keywords: []string{"openrouter"},
		EnvKey: "OPENROUTER_API_KEY", DisplayName: "OpenRouter",
		IsGateway:         true,
		DetectByKeyPrefix: "sk-or-", DetectByBaseKW: "openrouter",
		DefaultAPIBase: "https://openrouter.ai/api/v1",
	},
	{
		Name: "anthropic", Keywords: []string{"anthropic", "claude"},
		EnvKey: "ANTHROPIC_API_KEY", DisplayName: "Anthropic",
	},
	{
		Name: "openai", Keywords: []string{"openai", "gpt"},
		EnvKey: "OPENAI_API_KEY", DisplayName: "OpenAI",
		DefaultAPIBase: "https://api.openai.com/v1",
	},
	{
		Name: "deepseek", Keywords: []string{"deepseek"},
		EnvKey: "DEEPSEEK_API_KEY", DisplayName: "DeepSeek",
		DefaultAPIBase: "https://api.deepseek.com/v1",
	},
	{
		Name: "moonshot", Keywords: []string{"moonshot", "kimi"},
		EnvKey: "MOONSHOT_API_KEY", DisplayName: "Moonshot",
		DefaultAPIBase: "https://api.moonshot.ai/v1",
	},
	{
		Name: "groq", Keywords: []string{"groq"},
		EnvKey: "GROQ_API_KEY", DisplayName: "Groq",
		DefaultAPIBase: "https://api.groq.com/openai/v1",
	},
}

// FindByModel returns the non-gateway spec whose keywords match the
// model name, or nil.
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	for _, spec := range Specs {
		if spec.IsGateway {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return spec
			}
		}
	}
	return nil
}

// FindGateway detects a gateway provider by explicit name, API-key
// prefix, or API-base keyword, in that priority order.
func FindGateway(providerName, apiKey, apiBase string) *ProviderSpec {
	if providerName != "" {
		if spec := FindByName(providerName); spec != nil && spec.IsGateway {
			return spec
		}
	}
	for _, spec := range Specs {
		if spec.DetectByKeyPrefix != "" && apiKey != "" &&
			strings.HasPrefix(apiKey, spec.DetectByKeyPrefix) {
			return spec
		}
		if spec.DetectByBaseKW != "" && apiBase != "" &&
			strings.Contains(apiBase, spec.DetectByBaseKW) {
			return spec
		}
	}
	return nil
}

// FindByName finds a spec by its config name.
func FindByName(name string) *ProviderSpec {
	for _, spec := range Specs {
		if spec.Name == name {
			return spec
		}
	}
	return nil
}
