package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parleybot/parley/internal/bus"
)

// DefaultWhatsAppMessageLimit keeps bridge payloads a manageable size.
const DefaultWhatsAppMessageLimit = 4000

// WhatsAppChannel talks to a Node.js WhatsApp bridge over WebSocket.
type WhatsAppChannel struct {
	BaseChannel
	BridgeURL   string
	BridgeToken string
	MaxLen      int

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancelFn  context.CancelFunc
}

// NewWhatsAppChannel creates a WhatsAppChannel.
func NewWhatsAppChannel(bridgeURL, bridgeToken string, allowFrom []string, msgBus *bus.MessageBus) *WhatsAppChannel {
	if bridgeURL == "" {
		bridgeURL = "ws://localhost:3001"
	}
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{
			ChannelName: "whatsapp",
			Bus:         msgBus,
			AllowFrom:   allowFrom,
		},
		BridgeURL:   bridgeURL,
		BridgeToken: bridgeToken,
		MaxLen:      DefaultWhatsAppMessageLimit,
	}
}

func (w *WhatsAppChannel) Name() string { return "whatsapp" }

// Start connects to the bridge and reads messages, reconnecting with
// backoff until ctx is cancelled.
func (w *WhatsAppChannel) Start(ctx context.Context) error {
	w.setRunning(true)
	ctx, w.cancelFn = context.WithCancel(ctx)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.setRunning(false)
			return nil
		default:
		}

		if err := w.runConnection(ctx); err != nil {
			log.Printf("WhatsApp bridge: %v (reconnecting in %s)", err, backoff)
		}
		w.setConnected(false)

		select {
		case <-ctx.Done():
			w.setRunning(false)
			return nil
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// runConnection dials the bridge and pumps messages until the
// connection drops.
func (w *WhatsAppChannel) runConnection(ctx context.Context) error {
	header := http.Header{}
	if w.BridgeToken != "" {
		header.Set("Authorization", "Bearer "+w.BridgeToken)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.BridgeURL, header)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	w.mu.Lock()
	w.conn = conn
	w.mu.Unlock()
	log.Printf("WhatsApp bridge connected: %s", w.BridgeURL)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		w.ProcessBridgeMessage(string(raw))
	}
}

// Stop closes the bridge connection.
func (w *WhatsAppChannel) Stop() error {
	w.setRunning(false)
	w.setConnected(false)
	if w.cancelFn != nil {
		w.cancelFn()
	}
	return nil
}

// Send writes an outbound message to the bridge, chunked to the size
// limit.
func (w *WhatsAppChannel) Send(msg bus.OutboundMessage) error {
	w.DeliverChunked(func(chunk string) error {
		payload, _ := json.Marshal(map[string]string{
			"type": "send",
			"to":   msg.ChatID,
			"text": chunk,
		})
		return w.writeBridge(payload)
	}, msg.Content, w.MaxLen)
	return nil
}

// writeBridge serializes writes to the shared WebSocket connection.
func (w *WhatsAppChannel) writeBridge(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected || w.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

// ProcessBridgeMessage handles one frame from the bridge.
func (w *WhatsAppChannel) ProcessBridgeMessage(raw string) {
	var data map[string]any
	if json.Unmarshal([]byte(raw), &data) != nil {
		return
	}

	msgType, _ := data["type"].(string)
	switch msgType {
	case "message":
		sender, _ := data["sender"].(string)
		pn, _ := data["pn"].(string)
		content, _ := data["content"].(string)

		userID := pn
		if userID == "" {
			userID = sender
		}
		// Strip the JID domain: "12345@s.whatsapp.net" -> "12345".
		if idx := strings.Index(userID, "@"); idx >= 0 {
			userID = userID[:idx]
		}
		if content == "" {
			content = EmptyMessageSentinel
		}

		w.HandleMessage(userID, sender, content, map[string]any{
			"message_id": data["id"],
			"is_group":   data["isGroup"],
		})

	case "status":
		status, _ := data["status"].(string)
		log.Printf("WhatsApp status: %s", status)
		w.setConnected(status == "connected")

	case "qr":
		log.Println("Scan the QR code in the bridge terminal to connect WhatsApp")

	case "error":
		errMsg, _ := data["error"].(string)
		log.Printf("WhatsApp bridge error: %s", errMsg)
	}
}

func (w *WhatsAppChannel) setConnected(connected bool) {
	w.mu.Lock()
	w.connected = connected
	w.mu.Unlock()
}
