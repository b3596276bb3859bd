package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/parleybot/parley/internal/providers"
	"github.com/parleybot/parley/internal/session"
)

// DefaultHistoryMarker separates persisted history from the live
// request in the provider payload.
const DefaultHistoryMarker = "--- END OF HISTORY ---"

// DefaultTurnTemplate is how the current turn is rendered for the
// provider. {marker} and {message} are substituted at request time.
const DefaultTurnTemplate = "{marker}\n\n{message}"

// BootstrapFiles are folded into the system prompt when present in the
// workspace.
var BootstrapFiles = []string{"AGENTS.md", "SOUL.md", "USER.md", "TOOLS.md", "IDENTITY.md"}

// ContextBuilder assembles system prompts and provider message lists.
// The turn wrapper it renders exists only in the outgoing request;
// nothing it produces is ever written back to a session.
type ContextBuilder struct {
	Workspace    string
	Memory       *MemoryStore
	Marker       string
	TurnTemplate string
}

// NewContextBuilder creates a ContextBuilder for a workspace with the
// default marker and template.
func NewContextBuilder(workspace string) *ContextBuilder {
	return &ContextBuilder{
		Workspace:    workspace,
		Memory:       NewMemoryStore(workspace),
		Marker:       DefaultHistoryMarker,
		TurnTemplate: DefaultTurnTemplate,
	}
}

// RenderCurrentTurn renders the live user message with the history
// boundary marker. Pure: the input text is untouched and recoverable.
func (c *ContextBuilder) RenderCurrentTurn(content string) string {
	marker := c.Marker
	if marker == "" {
		marker = DefaultHistoryMarker
	}
	tmpl := c.TurnTemplate
	if tmpl == "" {
		tmpl = DefaultTurnTemplate
	}
	out := strings.ReplaceAll(tmpl, "{marker}", marker)
	return strings.ReplaceAll(out, "{message}", content)
}

// BuildSystemPrompt builds the system prompt from identity, bootstrap
// files, and long-term memory.
func (c *ContextBuilder) BuildSystemPrompt() string {
	parts := []string{c.identity()}

	if bs := c.loadBootstrapFiles(); bs != "" {
		parts = append(parts, bs)
	}
	if mem := c.Memory.MemoryContext(); mem != "" {
		parts = append(parts, fmt.Sprintf("# Memory\n\n%s", mem))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (c *ContextBuilder) identity() string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")
	tz, _ := time.Now().Zone()
	sys := runtime.GOOS
	if sys == "darwin" {
		sys = "macOS"
	}
	rt := fmt.Sprintf("%s %s, Go %s", sys, runtime.GOARCH, runtime.Version())
	ws, _ := filepath.Abs(c.Workspace)

	return fmt.Sprintf(`# parley

You are parley, a helpful assistant reachable over chat channels. You
have tools to read and write workspace files, check the time, and send
messages to users.

## Current Time
%s (%s)

## Runtime
%s

## Workspace
Your workspace is at: %s
- Long-term memory: %s/memory/MEMORY.md
- History log: %s/memory/HISTORY.md

Be helpful, accurate, and concise.`, now, tz, rt, ws, ws, ws)
}

func (c *ContextBuilder) loadBootstrapFiles() string {
	var parts []string
	for _, name := range BootstrapFiles {
		data, err := os.ReadFile(filepath.Join(c.Workspace, name))
		if err == nil {
			parts = append(parts, fmt.Sprintf("## %s\n\n%s", name, string(data)))
		}
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages constructs the provider message list for one turn:
// system prompt, the persisted history as-is, then the current user
// message rendered with the boundary wrapper.
func (c *ContextBuilder) BuildMessages(history []session.Message, current, channel, chatID string) []providers.Message {
	systemPrompt := c.BuildSystemPrompt()
	if channel != "" && chatID != "" {
		systemPrompt += fmt.Sprintf("\n\n## Current Session\nChannel: %s\nChat ID: %s", channel, chatID)
	}

	messages := []providers.Message{{Role: "system", Content: systemPrompt}}
	for _, h := range history {
		messages = append(messages, providers.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, providers.Message{
		Role:    "user",
		Content: c.RenderCurrentTurn(current),
	})
	return messages
}

// AddAssistantMessage appends the assistant's reply, echoing any tool
// calls so subsequent tool results are accepted by the API.
func (c *ContextBuilder) AddAssistantMessage(messages []providers.Message, content string, toolCalls []map[string]any) []providers.Message {
	return append(messages, providers.Message{
		Role:      "assistant",
		Content:   content,
		ToolCalls: toolCalls,
	})
}

// AddToolResult appends one tool execution result.
func (c *ContextBuilder) AddToolResult(messages []providers.Message, toolCallID, toolName, result string) []providers.Message {
	return append(messages, providers.Message{
		Role:       "tool",
		Name:       toolName,
		ToolCallID: toolCallID,
		Content:    result,
	})
}
