package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var settableKeys = map[string]bool{
	"server.host":      true,
	"server.http_port": true,
	"server.tcp_port":  true,
	"server.config":    true,
	"user.token":       true,
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Persist a CLI setting (server.host, server.http_port, server.tcp_port, server.config, user.token)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !settableKeys[key] {
			return fmt.Errorf("unknown key %q", key)
		}

		viper.Set(key, value)
		if err := Save(); err != nil {
			return err
		}

		fmt.Printf("✓ %s updated\n", key)
		return nil
	},
}

// Save writes the current viper settings to Path
func Save() error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func init() {
	ConfigCmd.AddCommand(setCmd)
}
