// Package channels integrates chat platforms with the message bus.
package channels

import (
	"context"
	"log"
	"strings"
	"sync/atomic"

	"github.com/parleybot/parley/internal/bus"
)

// EmptyMessageSentinel is the placeholder channels publish for inbound
// messages with no text content. Outbound delivery treats it as
// nothing-to-send.
const EmptyMessageSentinel = "[empty message]"

// Channel is implemented by every chat platform integration.
type Channel interface {
	// Name returns the channel identifier, e.g. "telegram".
	Name() string

	// Start connects to the platform and listens until ctx is cancelled.
	Start(ctx context.Context) error

	// Stop shuts the channel down.
	Stop() error

	// Send delivers an outbound message through this channel.
	Send(msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is active.
	IsRunning() bool
}

// BaseChannel carries the logic shared by all channel implementations:
// the allowlist check, inbound publishing, chunked delivery, and the
// running flag. The flag is atomic: Start goroutines write it while the
// manager's status path reads it.
type BaseChannel struct {
	ChannelName string
	Bus         *bus.MessageBus
	AllowFrom   []string

	running atomic.Bool
}

// IsRunning reports whether the channel is active.
func (b *BaseChannel) IsRunning() bool { return b.running.Load() }

func (b *BaseChannel) setRunning(v bool) { b.running.Store(v) }

// IsAllowed checks whether a sender may talk to the bot. An empty
// allowlist permits everyone.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.AllowFrom) == 0 {
		return true
	}
	for _, allowed := range b.AllowFrom {
		if allowed == senderID {
			return true
		}
	}
	// Compound IDs like "12345|username" match on any part.
	if strings.Contains(senderID, "|") {
		for _, part := range strings.Split(senderID, "|") {
			if part == "" {
				continue
			}
			for _, allowed := range b.AllowFrom {
				if allowed == part {
					return true
				}
			}
		}
	}
	return false
}

// HandleMessage checks the allowlist and publishes the message inbound.
func (b *BaseChannel) HandleMessage(senderID, chatID, content string, metadata map[string]any) {
	if !b.IsAllowed(senderID) {
		log.Printf("[%s] dropping message from disallowed sender %s", b.ChannelName, senderID)
		return
	}
	msg := bus.InboundMessage{
		Channel:  b.ChannelName,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Metadata: metadata,
	}
	if err := b.Bus.PublishInbound(msg); err != nil {
		log.Printf("[%s] publish inbound: %v", b.ChannelName, err)
	}
}

// DeliverChunked sends content through the platform transport in
// ordered, size-limited chunks. Content that is whitespace-only or the
// empty-message sentinel produces no transport calls at all, and
// whitespace-only chunks are skipped individually. A failed chunk is
// logged and does not stop the remaining chunks.
func (b *BaseChannel) DeliverChunked(send func(chunk string) error, content string, maxLen int) {
	if strings.TrimSpace(content) == "" || content == EmptyMessageSentinel {
		return
	}
	for _, chunk := range SplitMessage(content, maxLen) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}
		if err := send(chunk); err != nil {
			log.Printf("[%s] send chunk: %v", b.ChannelName, err)
		}
	}
}

// SplitMessage splits content into chunks of at most maxLen bytes,
// preferring to break at a newline in the second half of the window.
func SplitMessage(content string, maxLen int) []string {
	if maxLen <= 0 || len(content) <= maxLen {
		return []string{content}
	}

	var chunks []string
	for len(content) > 0 {
		if len(content) <= maxLen {
			chunks = append(chunks, content)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(content[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, content[:cut])
		content = content[cut:]
	}
	return chunks
}
