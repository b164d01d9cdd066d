package rewards

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/internal/cli/client"
)

var RewardsCmd = &cobra.Command{
	Use:   "rewards",
	Short: "Reward commands",
	Long:  "Inspect a user's points, streaks, ledger and badges",
}

func init() {
	RewardsCmd.PersistentFlags().String("user-id", "", "User to inspect (admin or service tokens only; defaults to the token's user)")
}

func apiClient() (*client.Client, error) {
	api := client.FromConfig()
	if !api.HasToken() {
		return nil, fmt.Errorf("no token configured. Run: rewardsctl config set user.token <token>")
	}
	return api, nil
}
