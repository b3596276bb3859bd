package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parleybot/parley/internal/agent"
	"github.com/parleybot/parley/internal/bus"
	"github.com/parleybot/parley/internal/config"
)

var chatMessage string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent from the terminal",
	Long:  "Send a single message with -m, or start an interactive session.",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "send one message and exit")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	msgBus := bus.NewMessageBus(cfg.Bus.BufferSize)
	defer msgBus.Close()

	loop := agent.NewLoop(msgBus, makeProvider(cfg), agentConfig(cfg))
	applyTurnTemplate(loop, cfg)

	ctx := cmd.Context()

	if chatMessage != "" {
		reply, err := loop.ProcessDirect(ctx, chatMessage, "cli", "direct")
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	fmt.Println("parley interactive chat. Type 'exit' or Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		reply, err := loop.ProcessDirect(ctx, line, "cli", "direct")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
}
