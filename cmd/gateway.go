package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleybot/parley/internal/agent"
	"github.com/parleybot/parley/internal/bus"
	"github.com/parleybot/parley/internal/cache"
	"github.com/parleybot/parley/internal/channels"
	"github.com/parleybot/parley/internal/config"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the parley gateway (channels + agent)",
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	msgBus := bus.NewMessageBus(cfg.Bus.BufferSize)
	defer msgBus.Close()

	provider := makeProvider(cfg)

	agentCfg := agentConfig(cfg)
	loop := agent.NewLoop(msgBus, provider, agentCfg)
	applyTurnTemplate(loop, cfg)

	sessionCache := cache.New(cache.Config{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer sessionCache.Close()
	loop.Cache = sessionCache

	chMgr := channels.NewManager(msgBus)
	if tg := cfg.Channels.Telegram; tg != nil && tg.Token != "" {
		chMgr.Register(channels.NewTelegramChannel(tg.Token, tg.AllowFrom, tg.MaxMessageLength, msgBus))
	}
	if wa := cfg.Channels.WhatsApp; wa != nil {
		chMgr.Register(channels.NewWhatsAppChannel(wa.BridgeURL, wa.BridgeToken, wa.AllowFrom, msgBus))
	}

	if names := chMgr.Names(); len(names) > 0 {
		log.Printf("Channels enabled: %v", names)
	} else {
		log.Println("Warning: no channels enabled; check config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down")
		chMgr.StopAll()
		cancel()
		// Give in-flight turns a moment, then force exit on a second
		// signal.
		select {
		case <-sigCh:
		case <-time.After(10 * time.Second):
		}
		os.Exit(1)
	}()

	errCh := make(chan error, 2)
	go func() { errCh <- loop.Run(ctx) }()
	go func() { errCh <- chMgr.StartAll(ctx) }()

	return <-errCh
}
