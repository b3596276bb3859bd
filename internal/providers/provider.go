package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider calls OpenAI-compatible chat completion endpoints. It works
// against gateways (OpenRouter) and direct provider APIs alike.
type Provider struct {
	APIKey       string
	APIBase      string
	Model        string // default model
	ExtraHeaders map[string]string
	HTTPClient   *http.Client

	gateway *ProviderSpec
}

// NewProvider creates a Provider for the given credentials. An empty
// model falls back to a sensible default.
func NewProvider(apiKey, apiBase, defaultModel, providerName string) *Provider {
	if defaultModel == "" {
		defaultModel = "anthropic/claude-sonnet-4-5"
	}
	p := &Provider{
		APIKey:     apiKey,
		APIBase:    apiBase,
		Model:      defaultModel,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
	p.gateway = FindGateway(providerName, apiKey, apiBase)
	return p
}

// DefaultModel satisfies the LLMProvider interface.
func (p *Provider) DefaultModel() string { return p.Model }

// Chat sends a chat completion request. Transport failures, non-200
// statuses, and malformed responses are returned as errors.
func (p *Provider) Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = p.Model
	}
	model = p.resolveModel(model)

	maxTokens := req.MaxTokens
	if maxTokens < 1 {
		maxTokens = 4096
	}

	body := map[string]any{
		"model":       model,
		"messages":    req.Messages,
		"max_tokens":  maxTokens,
		"temperature": req.Temperature,
	}
	if len(req.Tools) > 0 {
		body["tools"] = req.Tools
		body["tool_choice"] = "auto"
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	apiBase, apiKey := p.resolveEndpoint(model)
	endpoint := strings.TrimRight(apiBase, "/") + "/chat/completions"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}
	for k, v := range p.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm http %d: %s", resp.StatusCode, truncateBody(respBody))
	}

	return parseResponse(respBody)
}

// resolveEndpoint picks the API base and key, falling back to the spec
// registry when the provider was constructed without explicit values.
func (p *Provider) resolveEndpoint(model string) (apiBase, apiKey string) {
	apiBase = p.APIBase
	apiKey = p.APIKey

	if apiBase == "" {
		if spec := FindByModel(model); spec != nil {
			if spec.DefaultAPIBase != "" {
				apiBase = spec.DefaultAPIBase
			}
			if apiKey == "" && spec.EnvKey != "" {
				apiKey = os.Getenv(spec.EnvKey)
			}
		}
	}
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	return apiBase, apiKey
}

// resolveModel strips the "provider/" prefix when calling a provider's
// own API directly; gateways keep the full routed name.
func (p *Provider) resolveModel(model string) string {
	if p.gateway != nil {
		return model
	}
	spec := FindByModel(model)
	if spec != nil && spec.DefaultAPIBase != "" {
		if idx := strings.Index(model, "/"); idx >= 0 {
			model = model[idx+1:]
		}
	}
	return model
}

// openAIResponse mirrors the OpenAI chat completion response shape.
type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func parseResponse(body []byte) (*LLMResponse, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse llm response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm response has no choices")
	}

	choice := resp.Choices[0]

	var toolCalls []ToolCallRequest
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			json.Unmarshal([]byte(tc.Function.Arguments), &args)
		}
		toolCalls = append(toolCalls, ToolCallRequest{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	usage := map[string]int{}
	if resp.Usage != nil {
		usage["prompt_tokens"] = resp.Usage.PromptTokens
		usage["completion_tokens"] = resp.Usage.CompletionTokens
		usage["total_tokens"] = resp.Usage.TotalTokens
	}

	finishReason := choice.FinishReason
	if finishReason == "" {
		finishReason = "stop"
	}

	return &LLMResponse{
		Content:      choice.Message.Content,
		ToolCalls:    toolCalls,
		FinishReason: finishReason,
		Usage:        usage,
	}, nil
}

func truncateBody(body []byte) string {
	const max = 500
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
