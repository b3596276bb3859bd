package channels

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleybot/parley/internal/bus"
)

func newTelegramAPIStub(t *testing.T) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var sends []map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			var params map[string]any
			json.NewDecoder(r.Body).Decode(&params)
			sends = append(sends, params)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
	}))
	return server, &sends
}

func TestTelegramChannel_ProcessUpdate(t *testing.T) {
	b := bus.NewMessageBus(10)
	defer b.Close()
	ch := NewTelegramChannel("tok", nil, 0, b)

	ch.processUpdate(map[string]any{
		"update_id": float64(1),
		"message": map[string]any{
			"message_id": float64(99),
			"from":       map[string]any{"id": float64(12345), "username": "alice"},
			"chat":       map[string]any{"id": float64(67890)},
			"text":       "hello bot",
		},
	})

	msg, err := b.ConsumeInbound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345|alice", msg.SenderID)
	assert.Equal(t, "67890", msg.ChatID)
	assert.Equal(t, "hello bot", msg.Content)
	assert.Equal(t, "telegram:67890", msg.SessionKey())
}

func TestTelegramChannel_ProcessUpdate_CaptionFallback(t *testing.T) {
	b := bus.NewMessageBus(10)
	defer b.Close()
	ch := NewTelegramChannel("tok", nil, 0, b)

	ch.processUpdate(map[string]any{
		"message": map[string]any{
			"from":    map[string]any{"id": float64(1)},
			"chat":    map[string]any{"id": float64(2)},
			"caption": "photo caption",
		},
	})

	msg, err := b.ConsumeInbound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "photo caption", msg.Content)
}

func TestTelegramChannel_ProcessUpdate_EmptyBecomesSentinel(t *testing.T) {
	b := bus.NewMessageBus(10)
	defer b.Close()
	ch := NewTelegramChannel("tok", nil, 0, b)

	ch.processUpdate(map[string]any{
		"message": map[string]any{
			"from": map[string]any{"id": float64(1)},
			"chat": map[string]any{"id": float64(2)},
		},
	})

	msg, err := b.ConsumeInbound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EmptyMessageSentinel, msg.Content)
}

func TestTelegramChannel_Send(t *testing.T) {
	server, sends := newTelegramAPIStub(t)
	defer server.Close()

	b := bus.NewMessageBus(10)
	defer b.Close()
	ch := NewTelegramChannel("tok", nil, 0, b)
	ch.apiBase = server.URL

	require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: "1", Content: "Hello, world!"}))
	require.Len(t, *sends, 1)
	assert.Equal(t, "Hello, world!", (*sends)[0]["text"])
	assert.Equal(t, "1", (*sends)[0]["chat_id"])
}

func TestTelegramChannel_Send_EmptyMakesNoAPICalls(t *testing.T) {
	server, sends := newTelegramAPIStub(t)
	defer server.Close()

	b := bus.NewMessageBus(10)
	defer b.Close()
	ch := NewTelegramChannel("tok", nil, 0, b)
	ch.apiBase = server.URL

	for _, content := range []string{"", "   ", "\n", EmptyMessageSentinel} {
		require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: "1", Content: content}))
	}
	assert.Empty(t, *sends)
}

func TestTelegramChannel_Send_SplitsLongMessages(t *testing.T) {
	server, sends := newTelegramAPIStub(t)
	defer server.Close()

	b := bus.NewMessageBus(10)
	defer b.Close()
	ch := NewTelegramChannel("tok", nil, 20, b)
	ch.apiBase = server.URL

	require.NoError(t, ch.Send(bus.OutboundMessage{ChatID: "1", Content: strings.Repeat("x", 50)}))
	require.Len(t, *sends, 3)
	for _, s := range *sends {
		assert.LessOrEqual(t, len(s["text"].(string)), 20)
	}
}
