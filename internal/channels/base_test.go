package channels

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleybot/parley/internal/bus"
)

func TestBaseChannel_IsAllowed(t *testing.T) {
	open := &BaseChannel{ChannelName: "test"}
	assert.True(t, open.IsAllowed("anyone"))

	restricted := &BaseChannel{ChannelName: "test", AllowFrom: []string{"alice", "42"}}
	assert.True(t, restricted.IsAllowed("alice"))
	assert.False(t, restricted.IsAllowed("bob"))
	// Compound IDs match on any part.
	assert.True(t, restricted.IsAllowed("42|someuser"))
	assert.False(t, restricted.IsAllowed("99|someuser"))
}

func TestBaseChannel_HandleMessage(t *testing.T) {
	b := bus.NewMessageBus(10)
	defer b.Close()

	ch := &BaseChannel{ChannelName: "test", Bus: b, AllowFrom: []string{"alice"}}

	ch.HandleMessage("alice", "chat-1", "hello", nil)
	ch.HandleMessage("mallory", "chat-1", "spam", nil)

	require.Equal(t, 1, b.InboundSize())
	msg, err := b.ConsumeInbound(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "test:chat-1", msg.SessionKey())
}

func TestDeliverChunked_EmptyContentSendsNothing(t *testing.T) {
	ch := &BaseChannel{ChannelName: "test"}

	for _, content := range []string{"", "   ", "\t", "\n", "\r\n", "  \n  ", EmptyMessageSentinel} {
		calls := 0
		ch.DeliverChunked(func(string) error { calls++; return nil }, content, 100)
		assert.Zero(t, calls, "content %q should produce no sends", content)
	}
}

func TestDeliverChunked_NormalContent(t *testing.T) {
	ch := &BaseChannel{ChannelName: "test"}

	var sent []string
	ch.DeliverChunked(func(chunk string) error {
		sent = append(sent, chunk)
		return nil
	}, "Hello, world!", 100)

	assert.Equal(t, []string{"Hello, world!"}, sent)
}

func TestDeliverChunked_SkipsWhitespaceChunks(t *testing.T) {
	ch := &BaseChannel{ChannelName: "test"}

	// maxLen 2 splits "A\n\n\n\nB" into "A\n", "\n\n", "\nB"; the
	// all-whitespace middle chunk is dropped.
	var sent []string
	ch.DeliverChunked(func(chunk string) error {
		sent = append(sent, chunk)
		return nil
	}, "A\n\n\n\nB", 2)

	require.Len(t, sent, 2)
	assert.Equal(t, "A\n", sent[0])
	assert.Equal(t, "\nB", sent[1])
}

func TestDeliverChunked_FailedChunkDoesNotBlockRest(t *testing.T) {
	ch := &BaseChannel{ChannelName: "test"}

	var sent []string
	calls := 0
	ch.DeliverChunked(func(chunk string) error {
		calls++
		if calls == 1 {
			return errors.New("boom")
		}
		sent = append(sent, chunk)
		return nil
	}, "A\n\n\n\nB", 2)

	assert.Equal(t, []string{"\nB"}, sent)
	assert.Equal(t, 2, calls)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 100))

	// Prefers the newline in the second half of the window.
	chunks := SplitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc"}, chunks)

	// No newline: hard split at maxLen.
	chunks = SplitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, chunks)

	// Every chunk respects the limit.
	for _, c := range SplitMessage(strings.Repeat("word ", 100), 32) {
		assert.LessOrEqual(t, len(c), 32)
	}
}
