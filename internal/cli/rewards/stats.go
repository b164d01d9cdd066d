package rewards

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show reward statistics",
	Long:  "Display points, level, streaks and report counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")

		api, err := apiClient()
		if err != nil {
			return err
		}
		stats, err := api.GetStats(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Rewards for %s\n\n", stats.UserID)
		fmt.Printf("  Points: %d (level %d, %d to next)\n", stats.TotalPoints, stats.Level, stats.PointsToNextLevel)
		if stats.Rank != nil {
			fmt.Printf("  Global rank: #%d\n", *stats.Rank)
		}
		fmt.Printf("  Reports: %d\n", stats.TotalReports)
		fmt.Printf("  Streak: %d days (longest %d)\n", stats.CurrentStreak, stats.LongestStreak)
		fmt.Printf("  Badges: %d\n", len(stats.BadgesEarned))
		fmt.Printf("  With images: %d, detailed: %d, marked safe: %d\n",
			stats.ReportsWithImages, stats.ReportsWithDetail, stats.ReportsMarkedSafe)
		fmt.Printf("  Urban: %d, rural: %d\n", stats.ReportsByArea.Urban, stats.ReportsByArea.Rural)

		if len(stats.PointsBreakdown) > 0 {
			reasons := make([]string, 0, len(stats.PointsBreakdown))
			for reason := range stats.PointsBreakdown {
				reasons = append(reasons, reason)
			}
			sort.Strings(reasons)

			fmt.Println("\nPoints by reason:")
			for _, reason := range reasons {
				fmt.Printf("  %-16s %d\n", reason, stats.PointsBreakdown[reason])
			}
		}
		return nil
	},
}

func init() {
	RewardsCmd.AddCommand(statsCmd)
}
