package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindByModel(t *testing.T) {
	spec := FindByModel("anthropic/claude-sonnet-4-5")
	require.NotNil(t, spec)
	assert.Equal(t, "anthropic", spec.Name)

	spec = FindByModel("gpt-4o")
	require.NotNil(t, spec)
	assert.Equal(t, "openai", spec.Name)

	spec = FindByModel("deepseek-chat")
	require.NotNil(t, spec)
	assert.Equal(t, "deepseek", spec.Name)

	assert.Nil(t, FindByModel("some-unknown-model"))
}

func TestFindGateway(t *testing.T) {
	spec := FindGateway("openrouter", "", "")
	require.NotNil(t, spec)
	assert.Equal(t, "openrouter", spec.Name)

	spec = FindGateway("", "sk-or-v1-abc123", "")
	require.NotNil(t, spec)
	assert.Equal(t, "openrouter", spec.Name)

	spec = FindGateway("", "", "https://openrouter.ai/api/v1")
	require.NotNil(t, spec)
	assert.Equal(t, "openrouter", spec.Name)

	assert.Nil(t, FindGateway("", "sk-abc123", "https://api.openai.com/v1"))
	assert.Nil(t, FindGateway("anthropic", "", ""))
}

func TestProvider_Chat(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message":       map[string]any{"content": "hello there"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, "openai/gpt-4o", "")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:  []Message{{Role: "user", Content: "hi"}},
		MaxTokens: 256,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.False(t, resp.HasToolCalls())
	assert.Equal(t, 13, resp.Usage["total_tokens"])
	assert.Equal(t, float64(256), gotBody["max_tokens"])
}

func TestProvider_Chat_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, "openai/gpt-4o", "")
	_, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestProvider_Chat_ToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id": "call_1",
								"function": map[string]any{
									"name":      "send_message",
									"arguments": `{"content": "hi"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
		})
	}))
	defer server.Close()

	p := NewProvider("test-key", server.URL, "openai/gpt-4o", "")
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools:    []map[string]any{{"type": "function"}},
	})
	require.NoError(t, err)

	require.True(t, resp.HasToolCalls())
	assert.Equal(t, "send_message", resp.ToolCalls[0].Name)
	assert.Equal(t, "hi", resp.ToolCalls[0].Arguments["content"])
}

func TestProvider_ResolveModel_StripsPrefixForDirectAPI(t *testing.T) {
	p := NewProvider("sk-direct", "https://api.deepseek.com/v1", "deepseek/deepseek-chat", "")
	assert.Equal(t, "deepseek-chat", p.resolveModel("deepseek/deepseek-chat"))

	gw := NewProvider("sk-or-v1-abc", "", "anthropic/claude-sonnet-4-5", "")
	assert.Equal(t, "anthropic/claude-sonnet-4-5", gw.resolveModel("anthropic/claude-sonnet-4-5"))
}
