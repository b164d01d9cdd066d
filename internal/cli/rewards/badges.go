package rewards

import (
	"fmt"

	"github.com/spf13/cobra"
)

var badgesCmd = &cobra.Command{
	Use:   "badges",
	Short: "Show badge progress",
	Long:  "Display every badge with unlock state and progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")

		api, err := apiClient()
		if err != nil {
			return err
		}
		progress, err := api.GetAchievements(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to get achievements: %w", err)
		}

		for _, p := range progress {
			mark := " "
			if p.Unlocked {
				mark = "✓"
			}
			fmt.Printf("  [%s] %-22s %d/%d (%.0f%%)\n", mark, p.Badge.Name, p.Current, p.Target, p.Percentage)
		}
		return nil
	},
}

func init() {
	RewardsCmd.AddCommand(badgesCmd)
}
