// Package lane serializes message processing per conversation.
//
// Each session key gets its own lane backed by a single worker
// goroutine, so one conversation's messages are handled strictly in
// arrival order while different conversations interleave freely.
// Three modes are supported:
//
//   - Followup:  handle each message sequentially (FIFO)
//   - Collect:   wait a short window and merge rapid-fire messages
//   - Interrupt: discard queued messages, handle only the latest
package lane

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/parleybot/parley/internal/bus"
)

// Mode selects the lane processing strategy.
type Mode string

const (
	ModeFollowup  Mode = "followup"
	ModeCollect   Mode = "collect"
	ModeInterrupt Mode = "interrupt"
)

// Handler processes a single (possibly merged) inbound message.
type Handler func(ctx context.Context, msg bus.InboundMessage)

// lane is one session's queue and worker state. dead marks a lane whose
// worker has exited; it is set only while both the manager and lane
// mutexes are held, and enqueues take the lane mutex, so a message can
// never land in a queue no worker will drain.
type lane struct {
	key   string
	mode  Mode
	queue chan bus.InboundMessage

	mu         sync.Mutex
	dead       bool
	lastActive time.Time
}

// tryEnqueue adds msg unless the queue is full or the lane has been
// retired.
func (l *lane) tryEnqueue(msg bus.InboundMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dead {
		return false
	}
	select {
	case l.queue <- msg:
		return true
	default:
		return false
	}
}

func (l *lane) isDead() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dead
}

// Manager owns the lanes for all sessions.
type Manager struct {
	mu            sync.Mutex
	lanes         map[string]*lane
	handler       Handler
	mode          Mode
	collectWindow time.Duration
	idleTimeout   time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// Config configures a lane Manager.
type Config struct {
	Handler       Handler
	Mode          Mode          // default ModeFollowup
	CollectWindow time.Duration // merge window for ModeCollect (default 2s)
	IdleTimeout   time.Duration // worker exit after inactivity (default 5m)
}

// NewManager creates a lane manager.
func NewManager(cfg Config) *Manager {
	if cfg.Mode == "" {
		cfg.Mode = ModeFollowup
	}
	if cfg.CollectWindow == 0 {
		cfg.CollectWindow = 2 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}
	return &Manager{
		lanes:         make(map[string]*lane),
		handler:       cfg.Handler,
		mode:          cfg.Mode,
		collectWindow: cfg.CollectWindow,
		idleTimeout:   cfg.IdleTimeout,
		stopCh:        make(chan struct{}),
	}
}

// Submit routes a message to its session's lane. The lane worker
// invokes the handler; Submit itself does not block on processing.
// A retired lane is replaced transparently with a fresh one.
func (m *Manager) Submit(ctx context.Context, msg bus.InboundMessage) error {
	for {
		l := m.getOrCreateLane(msg.SessionKey())
		if l.tryEnqueue(msg) {
			return nil
		}
		if l.isDead() {
			continue
		}
		// Queue full: wait briefly and retry. A non-empty queue is
		// never retired, so the lane stays live while we wait.
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) getOrCreateLane(key string) *lane {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.lanes[key]; ok {
		return l
	}
	l := &lane{
		key:        key,
		mode:       m.mode,
		queue:      make(chan bus.InboundMessage, 100),
		lastActive: time.Now(),
	}
	m.lanes[key] = l
	go m.runWorker(l)
	return l
}

// runWorker is the per-lane loop. It exits after the idle timeout so
// dormant conversations do not pin goroutines.
func (m *Manager) runWorker(l *lane) {
	for {
		select {
		case msg := <-l.queue:
			switch l.mode {
			case ModeCollect:
				m.handleCollect(l, msg)
			case ModeInterrupt:
				m.handleInterrupt(l, msg)
			default:
				m.handler(context.Background(), msg)
			}
			l.touch()

		case <-time.After(m.idleTimeout):
			if m.retireLane(l) {
				return
			}

		case <-m.stopCh:
			return
		}
	}
}

// handleCollect waits out the collect window, merging any messages
// that arrive in the meantime into one request.
func (m *Manager) handleCollect(l *lane, first bus.InboundMessage) {
	timer := time.NewTimer(m.collectWindow)
	defer timer.Stop()

	merged := []string{first.Content}
	for collecting := true; collecting; {
		select {
		case extra := <-l.queue:
			merged = append(merged, extra.Content)
		case <-timer.C:
			collecting = false
		}
	}

	msg := first
	msg.Content = strings.Join(merged, "\n")
	if len(merged) > 1 {
		log.Printf("[Lane] merged %d messages for session %s", len(merged), l.key)
	}
	m.handler(context.Background(), msg)
}

// handleInterrupt drains the queue and handles only the newest message.
func (m *Manager) handleInterrupt(l *lane, first bus.InboundMessage) {
	latest := first
	for {
		select {
		case newer := <-l.queue:
			log.Printf("[Lane] dropped superseded message for session %s", l.key)
			latest = newer
		default:
			m.handler(context.Background(), latest)
			return
		}
	}
}

func (l *lane) touch() {
	l.mu.Lock()
	l.lastActive = time.Now()
	l.mu.Unlock()
}

// retireLane removes an idle lane from the map. It refuses when
// messages are still queued: retirement and enqueue both hold the lane
// mutex, so every message Submit accepted is eventually drained.
func (m *Manager) retireLane(l *lane) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 {
		return false
	}
	l.dead = true
	delete(m.lanes, l.key)
	return true
}

// LaneCount returns the number of live lanes.
func (m *Manager) LaneCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lanes)
}

// Stop shuts down all lane workers.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}
