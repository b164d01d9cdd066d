package rewards

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/pkg/models"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List ledger entries",
	Long:  "List reward ledger entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		kind, _ := cmd.Flags().GetString("kind")

		if kind != "" && !models.RewardKind(kind).Valid() {
			return fmt.Errorf("--kind must be points or badge")
		}

		api, err := apiClient()
		if err != nil {
			return err
		}
		page, err := api.GetHistory(cmd.Context(), userID, limit, offset, kind)
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		if len(page.Data) == 0 {
			fmt.Println("No rewards yet")
			return nil
		}

		for _, e := range page.Data {
			label := e.Reason
			if e.Kind == models.RewardKindBadge {
				label = "badge:" + e.BadgeID
			}
			fmt.Printf("  %s  %-24s %+5d  %s\n", e.EarnedAt.Format("2006-01-02 15:04"), label, e.Points, e.SourceReportID)
		}
		fmt.Printf("\nShowing %d-%d of %d\n", offset+1, offset+len(page.Data), page.Meta.Total)
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Entries per page")
	historyCmd.Flags().Int("offset", 0, "Entries to skip")
	historyCmd.Flags().String("kind", "", "Filter by kind (points, badge)")
	RewardsCmd.AddCommand(historyCmd)
}
