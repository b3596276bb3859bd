package lane

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleybot/parley/internal/bus"
)

func TestManager_Followup_PreservesOrderPerSession(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	done := make(chan struct{})

	m := NewManager(Config{
		Mode: ModeFollowup,
		Handler: func(_ context.Context, msg bus.InboundMessage) {
			mu.Lock()
			handled = append(handled, msg.Content)
			if len(handled) == 5 {
				close(done)
			}
			mu.Unlock()
		},
	})
	defer m.Stop()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		msg := bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: fmt.Sprintf("msg-%d", i)}
		require.NoError(t, m.Submit(ctx, msg))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handler")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"msg-0", "msg-1", "msg-2", "msg-3", "msg-4"}, handled)
}

func TestManager_SessionsGetSeparateLanes(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)

	m := NewManager(Config{
		Mode: ModeFollowup,
		Handler: func(_ context.Context, _ bus.InboundMessage) {
			wg.Done()
		},
	})
	defer m.Stop()

	ctx := context.Background()
	require.NoError(t, m.Submit(ctx, bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "a"}))
	require.NoError(t, m.Submit(ctx, bus.InboundMessage{Channel: "whatsapp", ChatID: "2", Content: "b"}))

	waitDone := make(chan struct{})
	go func() { wg.Wait(); close(waitDone) }()
	select {
	case <-waitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	assert.Equal(t, 2, m.LaneCount())
}

func TestManager_Collect_MergesRapidFire(t *testing.T) {
	var mu sync.Mutex
	var handled []string
	done := make(chan struct{})

	m := NewManager(Config{
		Mode:          ModeCollect,
		CollectWindow: 100 * time.Millisecond,
		Handler: func(_ context.Context, msg bus.InboundMessage) {
			mu.Lock()
			handled = append(handled, msg.Content)
			mu.Unlock()
			close(done)
		},
	})
	defer m.Stop()

	ctx := context.Background()
	require.NoError(t, m.Submit(ctx, bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "first"}))
	require.NoError(t, m.Submit(ctx, bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "second"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handled, 1)
	assert.Equal(t, "first\nsecond", handled[0])
}

func TestManager_IdleRetirementLosesNoMessages(t *testing.T) {
	var handled atomic.Int64
	m := NewManager(Config{
		Mode:        ModeFollowup,
		IdleTimeout: 50 * time.Microsecond,
		Handler: func(_ context.Context, _ bus.InboundMessage) {
			handled.Add(1)
		},
	})
	defer m.Stop()

	// Hammer a handful of sessions while workers retire constantly,
	// so Submits keep racing lane teardown.
	ctx := context.Background()
	const total = 2000
	for i := 0; i < total; i++ {
		msg := bus.InboundMessage{Channel: "telegram", ChatID: fmt.Sprintf("%d", i%8), Content: "x"}
		require.NoError(t, m.Submit(ctx, msg))
	}

	require.Eventually(t, func() bool {
		return handled.Load() == total
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManager_Submit_ContextCancelled(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	var once sync.Once
	m := NewManager(Config{
		Mode: ModeFollowup,
		Handler: func(_ context.Context, _ bus.InboundMessage) {
			once.Do(func() { close(started) })
			<-block
		},
	})
	defer m.Stop()
	defer close(block)

	// Occupy the worker, then fill the lane queue so Submit must block.
	ctx := context.Background()
	msg := bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "x"}
	require.NoError(t, m.Submit(ctx, msg))
	<-started
	for i := 0; i < 100; i++ {
		require.NoError(t, m.Submit(ctx, msg))
	}

	cancelled, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := m.Submit(cancelled, msg)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
