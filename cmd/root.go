// Package cmd implements the parley command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley — a conversational agent gateway for chat channels",
	Long:  "parley connects chat channels (Telegram, WhatsApp) to an LLM-backed agent with per-conversation memory.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.parley/config.json)")
}
