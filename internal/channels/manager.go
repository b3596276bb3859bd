package channels

import (
	"context"
	"log"
	"sync"

	"github.com/parleybot/parley/internal/bus"
)

// Manager owns the channel instances and routes outbound messages to
// them.
type Manager struct {
	Bus      *bus.MessageBus
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewManager creates a channel manager.
func NewManager(msgBus *bus.MessageBus) *Manager {
	return &Manager{
		Bus:      msgBus,
		channels: make(map[string]Channel),
	}
}

// Register adds a channel.
func (m *Manager) Register(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[ch.Name()] = ch
}

// Get returns a channel by name, or nil.
func (m *Manager) Get(name string) Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.channels[name]
}

// Names returns the registered channel names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

// StartAll subscribes every channel to its outbound topic, starts the
// bus dispatcher, and runs the channels until they all return.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	channels := make(map[string]Channel, len(m.channels))
	for name, ch := range m.channels {
		channels[name] = ch
	}
	m.mu.RUnlock()

	if len(channels) == 0 {
		log.Println("No channels enabled")
		return nil
	}

	for name, ch := range channels {
		name, ch := name, ch
		m.Bus.Subscribe(name, func(msg bus.OutboundMessage) {
			if err := ch.Send(msg); err != nil {
				log.Printf("[%s] send: %v", name, err)
			}
		})
	}

	go m.Bus.DispatchOutbound(ctx)

	var wg sync.WaitGroup
	for name, ch := range channels {
		wg.Add(1)
		go func(n string, c Channel) {
			defer wg.Done()
			log.Printf("Starting %s channel", n)
			if err := c.Start(ctx); err != nil {
				log.Printf("[%s] channel stopped: %v", n, err)
			}
		}(name, ch)
	}
	wg.Wait()
	return nil
}

// StopAll stops every channel.
func (m *Manager) StopAll() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ch := range m.channels {
		if err := ch.Stop(); err != nil {
			log.Printf("[%s] stop: %v", name, err)
		}
	}
}

// Status reports the running state of each channel.
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		status[name] = ch.IsRunning()
	}
	return status
}
