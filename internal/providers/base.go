// Package providers defines the LLM provider interface and an
// OpenAI-compatible HTTP implementation.
package providers

import "context"

// Message is one entry in a chat completion request. ToolCalls carries
// the raw function-call echoes required before tool-result entries.
type Message struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	Name       string           `json:"name,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []map[string]any `json:"tool_calls,omitempty"`
}

// ToolCallRequest is a tool invocation requested by the model.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// LLMResponse is the normalized response from any provider.
type LLMResponse struct {
	Content      string            `json:"content"`
	ToolCalls    []ToolCallRequest `json:"tool_calls,omitempty"`
	FinishReason string            `json:"finish_reason"`
	Usage        map[string]int    `json:"usage,omitempty"`
}

// HasToolCalls reports whether the model asked for tool execution.
func (r *LLMResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// ChatRequest holds the parameters for one chat completion call.
type ChatRequest struct {
	Messages    []Message        `json:"messages"`
	Tools       []map[string]any `json:"tools,omitempty"`
	Model       string           `json:"model,omitempty"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
}

// LLMProvider is the interface for all LLM backends. Chat returns an
// error on transport, auth, or rate-limit failure; callers decide how
// to surface that to the user.
type LLMProvider interface {
	Chat(ctx context.Context, req ChatRequest) (*LLMResponse, error)
	DefaultModel() string
}
