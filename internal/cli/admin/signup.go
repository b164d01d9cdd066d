package admin

import (
	"fmt"

	"github.com/spf13/cobra"

	"carboniq/internal/cli/client"
)

var signupCmd = &cobra.Command{
	Use:   "signup <user-id> <order>",
	Short: "Register a user's signup order",
	Long:  "Record the signup sequence number the identity service assigned, used by the early adopter badge",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var order int64
		if _, err := fmt.Sscan(args[1], &order); err != nil || order <= 0 {
			return fmt.Errorf("order must be a positive integer")
		}

		if err := client.FromConfig().RegisterSignup(cmd.Context(), args[0], order); err != nil {
			return fmt.Errorf("failed to register signup: %w", err)
		}

		fmt.Printf("✓ Signup order %d registered for %s\n", order, args[0])
		return nil
	},
}

func init() {
	AdminCmd.AddCommand(signupCmd)
}
