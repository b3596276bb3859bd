package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/parleybot/parley/internal/bus"
)

// DefaultTelegramMessageLimit is Telegram's hard cap on message text.
const DefaultTelegramMessageLimit = 4096

// TelegramChannel talks to the Telegram Bot API via long polling.
type TelegramChannel struct {
	BaseChannel
	Token      string
	MaxLen     int
	apiBase    string
	botUser    string
	client     *http.Client
	cancelFn   context.CancelFunc
}

// NewTelegramChannel creates a TelegramChannel.
func NewTelegramChannel(token string, allowFrom []string, maxLen int, msgBus *bus.MessageBus) *TelegramChannel {
	if maxLen <= 0 {
		maxLen = DefaultTelegramMessageLimit
	}
	return &TelegramChannel{
		BaseChannel: BaseChannel{
			ChannelName: "telegram",
			Bus:         msgBus,
			AllowFrom:   allowFrom,
		},
		Token:   token,
		MaxLen:  maxLen,
		apiBase: "https://api.telegram.org",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (t *TelegramChannel) Name() string { return "telegram" }

// Start begins long polling for updates. It blocks until ctx is
// cancelled.
func (t *TelegramChannel) Start(ctx context.Context) error {
	if t.Token == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	t.setRunning(true)
	ctx, t.cancelFn = context.WithCancel(ctx)

	info, err := t.apiCall("getMe", nil)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	if result, ok := info["result"].(map[string]any); ok {
		if username, ok := result["username"].(string); ok {
			t.botUser = username
			log.Printf("Telegram bot @%s connected", username)
		}
	}

	offset := 0
	for {
		select {
		case <-ctx.Done():
			t.setRunning(false)
			return nil
		default:
		}

		updates, err := t.apiCall("getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         30,
			"allowed_updates": []string{"message"},
		})
		if err != nil {
			log.Printf("Telegram getUpdates: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		results, _ := updates["result"].([]any)
		for _, u := range results {
			update, ok := u.(map[string]any)
			if !ok {
				continue
			}
			if uid, ok := update["update_id"].(float64); ok {
				offset = int(uid) + 1
			}
			t.processUpdate(update)
		}
	}
}

// Stop stops the long-poll loop.
func (t *TelegramChannel) Stop() error {
	t.setRunning(false)
	if t.cancelFn != nil {
		t.cancelFn()
	}
	return nil
}

// Send delivers an outbound message, splitting it to fit Telegram's
// message size limit.
func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	t.DeliverChunked(func(chunk string) error {
		_, err := t.apiCall("sendMessage", map[string]any{
			"chat_id": msg.ChatID,
			"text":    chunk,
		})
		return err
	}, msg.Content, t.MaxLen)
	return nil
}

// processUpdate turns one Telegram update into an inbound bus message.
// Media-only updates get the empty-message placeholder so the agent
// still sees that something arrived.
func (t *TelegramChannel) processUpdate(update map[string]any) {
	msg, ok := update["message"].(map[string]any)
	if !ok {
		return
	}
	from, _ := msg["from"].(map[string]any)
	chat, _ := msg["chat"].(map[string]any)
	if from == nil || chat == nil {
		return
	}

	userID := fmt.Sprintf("%.0f", from["id"])
	if username, ok := from["username"].(string); ok && username != "" {
		userID = fmt.Sprintf("%s|%s", userID, username)
	}
	chatID := fmt.Sprintf("%.0f", chat["id"])

	text, _ := msg["text"].(string)
	if text == "" {
		caption, _ := msg["caption"].(string)
		text = caption
	}
	if text == "" {
		text = EmptyMessageSentinel
	}

	t.HandleMessage(userID, chatID, text, map[string]any{
		"message_id": msg["message_id"],
	})
}

func (t *TelegramChannel) apiCall(method string, params map[string]any) (map[string]any, error) {
	url := fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.Token, method)
	body, _ := json.Marshal(params)
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if ok, _ := result["ok"].(bool); !ok {
		desc, _ := result["description"].(string)
		return result, fmt.Errorf("telegram %s: %s", method, desc)
	}
	return result, nil
}
