package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"carboniq/internal/core"
	"carboniq/internal/repository"
	"carboniq/pkg/config"
)

var AdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator commands",
	Long:  "Recalculate rewards, migrate storage, register signups and mint tokens",
}

// serviceConfig loads the service's own config file, so offline commands
// reach the same storage and JWT secret the server uses.
func serviceConfig() (*config.Config, error) {
	path := viper.GetString("server.config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load service config %q: %w", path, err)
	}
	return cfg, nil
}

// openService builds a rewards engine directly on the configured storage
func openService(ctx context.Context, cfg *config.Config) (core.RewardsService, *repository.Store, error) {
	store, err := repository.Open(ctx, cfg.Storage, cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	catalog, err := core.LoadBadgeCatalog()
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return core.NewRewardsService(store.Repos, catalog, core.OptionsFromConfig(cfg.Rewards)), store, nil
}
