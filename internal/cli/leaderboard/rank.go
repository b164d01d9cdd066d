package leaderboard

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/internal/cli/client"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Show a user's position on a leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")

		api := client.FromConfig()
		if !api.HasToken() {
			return fmt.Errorf("no token configured. Run: rewardsctl config set user.token <token>")
		}

		rank, err := api.GetMyRank(cmd.Context(), userID, boardQuery(cmd))
		if err != nil {
			return fmt.Errorf("failed to get rank: %w", err)
		}

		printWarning(rank.Warning)
		if rank.Position == 0 {
			fmt.Printf("%s is not ranked on %s (%s)\n", rank.UserID, rank.Scope, rank.Period)
			return nil
		}
		fmt.Printf("%s is #%d of %d on %s (%s)\n", rank.UserID, rank.Position, rank.Total, rank.Scope, rank.Period)
		fmt.Printf("  Score: %d\n", rank.Score)
		fmt.Printf("  Percentile: %.1f\n", rank.Percentile)
		return nil
	},
}

func init() {
	rankCmd.Flags().String("user-id", "", "User to look up (admin or service tokens only)")
	LeaderboardCmd.AddCommand(rankCmd)
}
