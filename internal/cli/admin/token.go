package admin

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cliconfig "carboniq/internal/cli/config"
	"carboniq/internal/core"
	"carboniq/pkg/models"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token",
	Long:  "Sign a token with the service's JWT secret, e.g. for the report service or an operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user-id")
		role, _ := cmd.Flags().GetString("role")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		save, _ := cmd.Flags().GetBool("save")

		principal := models.Principal{UserID: userID, Role: models.UserRole(role)}
		if principal.UserID == "" {
			return fmt.Errorf("--user-id is required")
		}
		if !principal.Role.Valid() {
			return fmt.Errorf("unknown role %q (user, service, admin)", role)
		}

		cfg, err := serviceConfig()
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is not set in the service config")
		}

		token, err := core.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer).IssueToken(principal, ttl)
		if err != nil {
			return err
		}

		if save {
			viper.Set("user.token", token)
			if err := cliconfig.Save(); err != nil {
				return err
			}
			fmt.Printf("✓ Token saved to: %s\n", cliconfig.Path())
			return nil
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user-id", "", "Subject user ID (required)")
	tokenCmd.Flags().String("role", string(models.UserRoleAdmin), "Role (user, service, admin)")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Flags().Bool("save", false, "Store the token in the CLI config")
	tokenCmd.MarkFlagRequired("user-id")
	AdminCmd.AddCommand(tokenCmd)
}
