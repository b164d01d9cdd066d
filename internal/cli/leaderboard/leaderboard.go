package leaderboard

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/internal/cli/client"
)

var LeaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Leaderboard commands",
	Long:  "Show global, institution, category and time-window rankings",
}

func init() {
	flags := LeaderboardCmd.PersistentFlags()
	flags.String("scope", "global", "Board scope (global, institution, category, window)")
	flags.String("institution", "", "Institution ID for --scope institution")
	flags.String("category", "", "Category for --scope category (points, reports, streak, badges)")
	flags.String("period", "all_time", "Period (all_time, weekly, monthly)")
}

func boardQuery(cmd *cobra.Command) client.BoardQuery {
	scope, _ := cmd.Flags().GetString("scope")
	institution, _ := cmd.Flags().GetString("institution")
	category, _ := cmd.Flags().GetString("category")
	period, _ := cmd.Flags().GetString("period")

	return client.BoardQuery{
		Scope:         scope,
		InstitutionID: institution,
		Category:      category,
		Period:        period,
	}
}

func printWarning(warning string) {
	if warning != "" {
		fmt.Printf("⚠ %s\n", warning)
	}
}
