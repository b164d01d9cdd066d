package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"carboniq/internal/cli/admin"
	cliconfig "carboniq/internal/cli/config"
	"carboniq/internal/cli/events"
	"carboniq/internal/cli/leaderboard"
	"carboniq/internal/cli/rewards"
)

var rootCmd = &cobra.Command{
	Use:           "rewardsctl",
	Short:         "CarbonIQ rewards CLI",
	Long:          "Inspect rewards and leaderboards, and operate the rewards engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("host", "", "API host (overrides server.host)")
	rootCmd.PersistentFlags().String("service-config", "", "Service config file for offline commands (overrides server.config)")
	viper.BindPFlag("server.host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("server.config", rootCmd.PersistentFlags().Lookup("service-config"))

	rootCmd.AddCommand(cliconfig.ConfigCmd)
	rootCmd.AddCommand(rewards.RewardsCmd)
	rootCmd.AddCommand(leaderboard.LeaderboardCmd)
	rootCmd.AddCommand(events.EventsCmd)
	rootCmd.AddCommand(admin.AdminCmd)
}

func initConfig() {
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.tcp_port", 9090)
	viper.SetDefault("server.config", "./configs/development.yaml")

	viper.SetConfigFile(cliconfig.Path())
	viper.SetEnvPrefix("REWARDSCTL")
	viper.AutomaticEnv()

	// A missing file just means defaults
	_ = viper.ReadInConfig()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
