package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  "View and manage CLI configuration",
}

// Path is where the CLI keeps its settings
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".carboniq", "config.yaml")
}
