package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the storage schema",
	Long:  "Create the ledger, stats and signup tables on the configured database. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := serviceConfig()
		if err != nil {
			return err
		}

		store, err := repository.Open(cmd.Context(), cfg.Storage, cfg.Database)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		defer store.Close()

		if err := store.HealthCheck(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("✓ Schema applied (%s)\n", store.Dialect())
		return nil
	},
}

func init() {
	AdminCmd.AddCommand(migrateCmd)
}
