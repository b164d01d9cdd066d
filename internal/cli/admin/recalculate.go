package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/internal/cli/client"
	"carboniq/pkg/models"
)

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Rebuild every user's stats from the ledger",
	Long:  "Replay the ledger for every user, fix drifted stats, award cross-user badges and rebuild leaderboards",
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")

		var (
			summary *models.RecalculationSummary
			err     error
		)
		if offline {
			cfg, cfgErr := serviceConfig()
			if cfgErr != nil {
				return cfgErr
			}
			svc, store, openErr := openService(cmd.Context(), cfg)
			if openErr != nil {
				return openErr
			}
			defer store.Close()
			summary, err = svc.RecalculateAll(cmd.Context())
		} else {
			api := client.FromConfig()
			if !api.HasToken() {
				return fmt.Errorf("no token configured. Run: rewardsctl admin token --role admin --save")
			}
			summary, err = api.RecalculateAll(cmd.Context())
		}
		if err != nil {
			return fmt.Errorf("recalculation failed: %w", err)
		}

		fmt.Println("✓ Recalculation complete")
		fmt.Printf("  Users processed: %d\n", summary.UsersProcessed)
		fmt.Printf("  Discrepancies fixed: %d\n", summary.DiscrepanciesFixed)
		fmt.Printf("  Badges awarded: %d\n", summary.BadgesAwarded)
		fmt.Printf("  Duration: %s\n", summary.Duration)
		return nil
	},
}

func init() {
	recalculateCmd.Flags().Bool("offline", false, "Run against the database directly instead of the API")
	AdminCmd.AddCommand(recalculateCmd)
}
