package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/config"
)

var (
	tokenSubject string
	tokenEmail   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue credentials for the built-in jwt identity mode",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Mint a signed session token for an identity",
	Long: `Mints an HS256 token signed with identity.jwt_secret. The identity gets a
USER profile without a company on first use unless one already exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Identity.Mode != config.IdentityModeJWT {
			return fmt.Errorf("token issuance requires identity.mode=%s", config.IdentityModeJWT)
		}
		if tokenSubject == "" {
			return fmt.Errorf("--subject flag is required")
		}

		provider, err := newJWTProvider(cfg.Identity)
		if err != nil {
			return err
		}
		token, err := provider.Issue(auth.Identity{ID: tokenSubject, Handle: tokenEmail})
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenSubject, "subject", "", "Identity id (sub claim)")
	tokenIssueCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
