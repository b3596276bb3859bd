package bus

import (
	"context"
	"errors"
	"sync"
)

// ErrBusClosed is returned when publishing to or consuming from a closed bus.
var ErrBusClosed = errors.New("bus: closed")

// DefaultBufferSize is the queue depth used when none is configured.
const DefaultBufferSize = 100

// MessageBus routes messages between channels and the agent core.
// Inbound and outbound queues are bounded; when a queue is full,
// publish blocks rather than dropping the message.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string][]func(OutboundMessage)
	closed      bool
}

// NewMessageBus creates a message bus with the given queue depth.
// A size of zero or less uses DefaultBufferSize.
func NewMessageBus(bufSize int) *MessageBus {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &MessageBus{
		inbound:     make(chan InboundMessage, bufSize),
		outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string][]func(OutboundMessage)),
	}
}

// PublishInbound enqueues a message from a channel to the agent.
// Blocks when the queue is full; fails with ErrBusClosed after Close.
func (b *MessageBus) PublishInbound(msg InboundMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	b.inbound <- msg
	return nil
}

// PublishOutbound enqueues a response from the agent to channels.
// Blocks when the queue is full; fails with ErrBusClosed after Close.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}
	b.outbound <- msg
	return nil
}

// ConsumeInbound blocks until an inbound message is available, the bus
// is closed, or ctx is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, error) {
	select {
	case msg, ok := <-b.inbound:
		if !ok {
			return InboundMessage{}, ErrBusClosed
		}
		return msg, nil
	case <-ctx.Done():
		return InboundMessage{}, ctx.Err()
	}
}

// Subscribe registers a callback for outbound messages targeting the
// named channel.
func (b *MessageBus) Subscribe(channel string, callback func(OutboundMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = append(b.subscribers[channel], callback)
}

// DispatchOutbound delivers outbound messages to their channel's
// subscribers in publish order. Blocks until ctx is cancelled or the
// bus is closed. Callbacks run on the dispatcher goroutine, so per-topic
// delivery order matches publish order.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-b.outbound:
			if !ok {
				return
			}
			b.mu.RLock()
			subs := b.subscribers[msg.Channel]
			b.mu.RUnlock()
			for _, cb := range subs {
				cb(msg)
			}
		}
	}
}

// Close tears down the bus. Subsequent publishes fail with ErrBusClosed;
// in-flight consumers drain what was already queued.
func (b *MessageBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.inbound)
	close(b.outbound)
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int {
	return len(b.outbound)
}
