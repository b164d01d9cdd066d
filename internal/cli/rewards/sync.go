package rewards

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild stats from the ledger",
	Long:  "Replay a user's ledger and store the corrected statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")

		api, err := apiClient()
		if err != nil {
			return err
		}
		stats, err := api.SyncStats(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to sync stats: %w", err)
		}

		fmt.Printf("✓ Stats synced for %s\n", stats.UserID)
		fmt.Printf("  Points: %d\n", stats.TotalPoints)
		fmt.Printf("  Reports: %d\n", stats.TotalReports)
		fmt.Printf("  Streak: %d\n", stats.CurrentStreak)
		return nil
	},
}

func init() {
	RewardsCmd.AddCommand(syncCmd)
}
