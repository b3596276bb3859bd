package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/parleybot/parley/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize parley configuration and workspace",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
	} else {
		if err := config.Save(config.DefaultConfig(), path); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		fmt.Printf("Created config at %s\n", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("creating workspace: %w", err)
	}
	fmt.Printf("Workspace at %s\n", workspace)

	templates := map[string]string{
		"AGENTS.md": "# Agent Instructions\n\nYou are a helpful assistant. Be concise, accurate, and friendly.\n\n## Guidelines\n\n- Ask for clarification when a request is ambiguous\n- Use tools to accomplish tasks\n- Record important facts in memory/MEMORY.md\n",
		"USER.md":   "# User\n\nInformation about the user goes here.\n\n## Preferences\n\n- Communication style: (casual/formal)\n- Timezone: (your timezone)\n- Language: (your preferred language)\n",
	}
	for filename, content := range templates {
		p := filepath.Join(workspace, filename)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			os.WriteFile(p, []byte(content), 0o644)
			fmt.Printf("  Created %s\n", filename)
		}
	}

	memDir := filepath.Join(workspace, "memory")
	os.MkdirAll(memDir, 0o755)
	memFile := filepath.Join(memDir, "MEMORY.md")
	if _, err := os.Stat(memFile); os.IsNotExist(err) {
		os.WriteFile(memFile, []byte("# Long-term Memory\n\n"), 0o644)
		fmt.Println("  Created memory/MEMORY.md")
	}

	fmt.Println("\nparley is ready.")
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Add your provider API key to %s\n", path)
	fmt.Println("  2. Chat: parley chat -m \"Hello!\"")
	fmt.Println("  3. Run the gateway: parley gateway")
	return nil
}
