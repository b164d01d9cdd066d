package leaderboard

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/internal/cli/client"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the top of a leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := boardQuery(cmd)
		query.Limit, _ = cmd.Flags().GetInt("limit")

		board, err := client.FromConfig().GetLeaderboard(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to get leaderboard: %w", err)
		}

		fmt.Printf("Leaderboard %s (%s), %d ranked\n", board.Scope, board.Period, board.Total)
		printWarning(board.Warning)
		fmt.Println("")

		if len(board.Entries) == 0 {
			fmt.Println("  No entries")
			return nil
		}
		for _, e := range board.Entries {
			fmt.Printf("  #%-4d %-36s %d\n", e.Rank, e.UserID, e.Score)
		}
		return nil
	},
}

var institutionsCmd = &cobra.Command{
	Use:   "institutions",
	Short: "Rank institutions by member points",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		rankings, err := client.FromConfig().GetInstitutionRankings(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to get institution rankings: %w", err)
		}

		if len(rankings) == 0 {
			fmt.Println("No institutions ranked yet")
			return nil
		}
		for _, r := range rankings {
			fmt.Printf("  #%-4d %-24s %d pts, %d members, %d reports, avg %.1f\n",
				r.Rank, r.InstitutionID, r.TotalPoints, r.Members, r.TotalReports, r.AveragePoints)
		}
		return nil
	},
}

func init() {
	topCmd.Flags().Int("limit", 10, "Entries to show")
	institutionsCmd.Flags().Int("limit", 10, "Institutions to show")
	LeaderboardCmd.AddCommand(topCmd)
	LeaderboardCmd.AddCommand(institutionsCmd)
}
