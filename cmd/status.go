package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleybot/parley/internal/cache"
	"github.com/parleybot/parley/internal/config"
	"github.com/parleybot/parley/internal/providers"
	"github.com/parleybot/parley/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show parley configuration and session activity",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("parley status")
	fmt.Println()
	fmt.Printf("Config:    %s\n", path)
	fmt.Printf("Workspace: %s\n", cfg.WorkspacePath())
	fmt.Printf("Model:     %s\n", cfg.Agent.Model)

	if gw := providers.FindGateway(cfg.Provider.Name, cfg.Provider.APIKey, cfg.Provider.APIBase); gw != nil {
		fmt.Printf("Provider:  %s (gateway)\n", gw.Label())
	} else if spec := providers.FindByModel(cfg.Agent.Model); spec != nil {
		fmt.Printf("Provider:  %s\n", spec.Label())
	}

	fmt.Println("\nChannels:")
	if tg := cfg.Channels.Telegram; tg != nil && tg.Token != "" {
		fmt.Println("  telegram: configured")
	}
	if wa := cfg.Channels.WhatsApp; wa != nil {
		url := wa.BridgeURL
		if url == "" {
			url = "ws://localhost:3001"
		}
		fmt.Printf("  whatsapp: bridge %s\n", url)
	}
	if cfg.Channels.Telegram == nil && cfg.Channels.WhatsApp == nil {
		fmt.Println("  (none)")
	}

	fmt.Println("\nSessions:")
	store := session.NewStore(cfg.WorkspacePath(), cfg.Agent.MemoryWindow)
	sessions := store.List()
	if len(sessions) == 0 {
		fmt.Println("  (none)")
	}
	for _, s := range sessions {
		fmt.Printf("  %s  (updated %s)\n", s["key"], s["updated_at"])
	}

	if cfg.Redis.URL != "" {
		printCacheStatus(cfg)
	}
	return nil
}

// printCacheStatus shows what the Redis mirror knows, when configured.
func printCacheStatus(cfg config.Config) {
	c := cache.New(cache.Config{URL: cfg.Redis.URL, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer c.Close()

	fmt.Println("\nRedis cache:")
	if !c.Available() {
		fmt.Println("  unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	keys := c.ListSessionKeys(ctx)
	fmt.Printf("  connected, %d session(s) mirrored\n", len(keys))
	for _, key := range keys {
		if meta, ok := c.GetSessionMeta(ctx, key); ok {
			fmt.Printf("  %s  entries=%d updated=%s\n", meta.Key, meta.Entries, meta.UpdatedAt)
		}
	}
}
