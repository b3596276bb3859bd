package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/parleybot/parley/internal/bus"
	"github.com/parleybot/parley/internal/cache"
	"github.com/parleybot/parley/internal/lane"
	"github.com/parleybot/parley/internal/providers"
	"github.com/parleybot/parley/internal/session"
	"github.com/parleybot/parley/internal/tools"
)

// ErrToolLoopExceeded means the model kept requesting tools past the
// configured round limit. The turn is abandoned.
var ErrToolLoopExceeded = errors.New("agent: tool-call round limit exceeded")

// providerErrorReply is what the user sees when the provider call
// fails. The failed turn's assistant entry is not persisted.
const providerErrorReply = "Sorry, I ran into a problem answering that. Please try again."

// Config holds the knobs for an agent Loop.
type Config struct {
	Workspace     string
	Model         string
	MaxToolRounds int
	Temperature   float64
	MaxTokens     int
	MemoryWindow  int
	LaneMode      lane.Mode
	CollectWindow time.Duration // merge window when LaneMode is collect
}

// Loop is the processing engine. It consumes inbound messages from the
// bus, serializes them per conversation, runs the provider/tool cycle,
// and publishes replies outbound.
type Loop struct {
	Bus      *bus.MessageBus
	Provider providers.LLMProvider
	Context  *ContextBuilder
	Sessions *session.Store
	Tools    *tools.Registry

	// Cache mirrors session metadata into Redis when configured; nil
	// or disconnected is fine.
	Cache *cache.Cache

	Model         string
	MaxToolRounds int
	Temperature   float64
	MaxTokens     int

	lanes    *lane.Manager
	sendTool *tools.SendMessageTool
}

// NewLoop wires up an agent loop with the built-in tools registered.
func NewLoop(msgBus *bus.MessageBus, provider providers.LLMProvider, cfg Config) *Loop {
	model := cfg.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	if cfg.MaxToolRounds == 0 {
		cfg.MaxToolRounds = 20
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MemoryWindow == 0 {
		cfg.MemoryWindow = 50
	}

	a := &Loop{
		Bus:           msgBus,
		Provider:      provider,
		Context:       NewContextBuilder(cfg.Workspace),
		Sessions:      session.NewStore(cfg.Workspace, cfg.MemoryWindow),
		Tools:         tools.NewRegistry(),
		Model:         model,
		MaxToolRounds: cfg.MaxToolRounds,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
	}

	a.sendTool = &tools.SendMessageTool{Send: func(msg bus.OutboundMessage) error {
		return msgBus.PublishOutbound(msg)
	}}
	a.Tools.Register(a.sendTool)
	a.Tools.Register(&tools.ClockTool{})
	a.Tools.Register(&tools.ReadFileTool{Root: cfg.Workspace})
	a.Tools.Register(&tools.WriteFileTool{Root: cfg.Workspace})
	a.Tools.Register(&tools.ListDirTool{Root: cfg.Workspace})

	a.lanes = lane.NewManager(lane.Config{
		Mode:          cfg.LaneMode,
		CollectWindow: cfg.CollectWindow,
		Handler:       a.processMessage,
	})
	return a
}

// Run consumes inbound messages until ctx is cancelled or the bus
// closes. Each message is routed to its conversation's lane so turns
// within one conversation never interleave.
func (a *Loop) Run(ctx context.Context) error {
	defer a.lanes.Stop()
	for {
		msg, err := a.Bus.ConsumeInbound(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := a.lanes.Submit(ctx, msg); err != nil {
			log.Printf("[Agent] submit %s: %v", msg.SessionKey(), err)
		}
	}
}

// processMessage runs one conversational turn.
//
// Order matters: the history snapshot is taken before the user entry is
// appended, so the wrapped copy of the current message appears exactly
// once in the provider request. The original unwrapped text is what
// gets persisted; on provider failure no assistant entry is written.
func (a *Loop) processMessage(ctx context.Context, msg bus.InboundMessage) {
	key := msg.SessionKey()
	sess := a.Sessions.GetOrCreate(key)

	history := sess.History()

	sess.Append("user", msg.Content)
	if err := a.Sessions.Save(sess); err != nil {
		log.Printf("[Agent] save session %s: %v", key, err)
	}

	a.sendTool.SetContext(msg.Channel, msg.ChatID)
	messages := a.Context.BuildMessages(history, msg.Content, msg.Channel, msg.ChatID)

	final, err := a.runToolLoop(ctx, messages)
	if err != nil {
		log.Printf("[Agent] turn failed for %s: %v", key, err)
		a.reply(msg, providerErrorReply)
		return
	}

	sess.Append("assistant", final)
	if err := a.Sessions.Save(sess); err != nil {
		log.Printf("[Agent] save session %s: %v", key, err)
	}
	a.mirrorSessionMeta(ctx, sess)
	a.reply(msg, final)
}

// mirrorSessionMeta pushes session metadata into the optional cache so
// status tooling can see activity without touching session files.
func (a *Loop) mirrorSessionMeta(ctx context.Context, sess *session.Session) {
	if !a.Cache.Available() {
		return
	}
	a.Cache.SetSessionMeta(ctx, cache.SessionMeta{
		Key:       sess.Key,
		UpdatedAt: sess.UpdatedAt.UTC().Format(time.RFC3339),
		Entries:   sess.Len(),
	})
}

// runToolLoop calls the provider, executing requested tools and feeding
// results back, until a plain response arrives or the round limit hits.
func (a *Loop) runToolLoop(ctx context.Context, messages []providers.Message) (string, error) {
	for round := 0; round < a.MaxToolRounds; round++ {
		resp, err := a.Provider.Chat(ctx, providers.ChatRequest{
			Messages:    messages,
			Tools:       a.Tools.Schemas(),
			Model:       a.Model,
			MaxTokens:   a.MaxTokens,
			Temperature: a.Temperature,
		})
		if err != nil {
			return "", fmt.Errorf("provider chat: %w", err)
		}

		if !resp.HasToolCalls() {
			return resp.Content, nil
		}

		var echoes []map[string]any
		for _, tc := range resp.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			echoes = append(echoes, map[string]any{
				"id":   tc.ID,
				"type": "function",
				"function": map[string]any{
					"name":      tc.Name,
					"arguments": string(argsJSON),
				},
			})
		}
		messages = a.Context.AddAssistantMessage(messages, resp.Content, echoes)

		for _, tc := range resp.ToolCalls {
			result := a.executeTool(ctx, tc)
			messages = a.Context.AddToolResult(messages, tc.ID, tc.Name, result)
		}
	}
	return "", ErrToolLoopExceeded
}

func (a *Loop) executeTool(ctx context.Context, tc providers.ToolCallRequest) string {
	tool := a.Tools.Get(tc.Name)
	if tool == nil {
		return fmt.Sprintf("Error: unknown tool %q", tc.Name)
	}
	result, err := tool.Execute(ctx, tc.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

// reply publishes the turn's answer back to the originating channel.
func (a *Loop) reply(msg bus.InboundMessage, content string) {
	out := bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
	}
	if err := a.Bus.PublishOutbound(out); err != nil {
		log.Printf("[Agent] publish reply for %s: %v", msg.SessionKey(), err)
	}
}

// ProcessDirect handles one message synchronously, for CLI use. It
// follows the same persistence discipline as bus-driven turns.
func (a *Loop) ProcessDirect(ctx context.Context, content, channel, chatID string) (string, error) {
	if channel == "" {
		channel = "cli"
	}
	if chatID == "" {
		chatID = "direct"
	}
	msg := bus.InboundMessage{Channel: channel, ChatID: chatID, SenderID: "cli", Content: content}

	sess := a.Sessions.GetOrCreate(msg.SessionKey())
	history := sess.History()

	sess.Append("user", content)
	if err := a.Sessions.Save(sess); err != nil {
		log.Printf("[Agent] save session %s: %v", msg.SessionKey(), err)
	}

	a.sendTool.SetContext(channel, chatID)
	messages := a.Context.BuildMessages(history, content, channel, chatID)

	final, err := a.runToolLoop(ctx, messages)
	if err != nil {
		return "", err
	}

	sess.Append("assistant", final)
	if err := a.Sessions.Save(sess); err != nil {
		log.Printf("[Agent] save session %s: %v", msg.SessionKey(), err)
	}
	a.mirrorSessionMeta(ctx, sess)
	return final, nil
}
