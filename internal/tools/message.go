package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/parleybot/parley/internal/bus"
)

// SendFunc delivers an outbound message on behalf of a tool.
type SendFunc func(msg bus.OutboundMessage) error

// SendMessageTool lets the model push a message to a chat channel
// mid-turn, before the final reply.
type SendMessageTool struct {
	Send           SendFunc
	DefaultChannel string
	DefaultChatID  string
}

func (t *SendMessageTool) Name() string { return "send_message" }
func (t *SendMessageTool) Description() string {
	return "Send a message to the user on a chat channel."
}

func (t *SendMessageTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content": map[string]any{"type": "string", "description": "The message content to send"},
			"channel": map[string]any{"type": "string", "description": "Optional: target channel name"},
			"chat_id": map[string]any{"type": "string", "description": "Optional: target chat/user ID"},
		},
		"required": []string{"content"},
	}
}

// SetContext points the tool at the conversation currently being
// handled, so the model can omit channel/chat_id.
func (t *SendMessageTool) SetContext(channel, chatID string) {
	t.DefaultChannel = channel
	t.DefaultChatID = chatID
}

func (t *SendMessageTool) Execute(_ context.Context, args map[string]any) (string, error) {
	content, _ := args["content"].(string)
	channel, _ := args["channel"].(string)
	chatID, _ := args["chat_id"].(string)

	if channel == "" {
		channel = t.DefaultChannel
	}
	if chatID == "" {
		chatID = t.DefaultChatID
	}
	if channel == "" || chatID == "" {
		return "Error: no target channel/chat specified", nil
	}
	if t.Send == nil {
		return "Error: message sending not configured", nil
	}

	if err := t.Send(bus.OutboundMessage{Channel: channel, ChatID: chatID, Content: content}); err != nil {
		return fmt.Sprintf("Error sending message: %v", err), nil
	}
	return fmt.Sprintf("Message sent to %s:%s", channel, chatID), nil
}

// ClockTool reports the current date and time.
type ClockTool struct {
	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (t *ClockTool) Name() string        { return "current_time" }
func (t *ClockTool) Description() string { return "Get the current local date and time." }

func (t *ClockTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *ClockTool) Execute(_ context.Context, _ map[string]any) (string, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return now().Format("Monday, 2006-01-02 15:04:05 MST"), nil
}
