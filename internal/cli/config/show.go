package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  "Display current rewards CLI configuration and connection settings",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("CarbonIQ Rewards Configuration:")
		fmt.Println("")
		fmt.Printf("Server:\n")
		fmt.Printf("  Host: %s\n", viper.GetString("server.host"))
		fmt.Printf("  HTTP Port: %d\n", viper.GetInt("server.http_port"))
		fmt.Printf("  TCP Port: %d\n", viper.GetInt("server.tcp_port"))
		fmt.Println("")

		if file := viper.GetString("server.config"); file != "" {
			fmt.Printf("Service config: %s\n\n", file)
		}

		token := viper.GetString("user.token")
		if token != "" {
			fmt.Printf("Token:\n")
			if len(token) > 20 {
				fmt.Printf("  Value: %s...\n", token[:20])
			} else {
				fmt.Printf("  Value: %s\n", token)
			}
			fmt.Printf("  Status: ✓ Configured\n")
		} else {
			fmt.Printf("Token: not configured\n")
			fmt.Printf("  Run 'rewardsctl admin token --user-id <id> --save' to mint one\n")
		}
	},
}

func init() {
	ConfigCmd.AddCommand(showCmd)
}
