package profiles

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
)

var setRoleCmd = &cobra.Command{
	Use:   "set-role [profile-id|email]",
	Short: "Change the role of a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if roleFlag == "" {
			return fmt.Errorf("--role flag is required")
		}
		role, err := auth.ParseRole(roleFlag)
		if err != nil {
			return err
		}
		return update(cmd, args[0], iam.ProfileUpdate{Role: &role})
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign-tenant [profile-id|email]",
	Short: "Assign a profile to a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID := tenantFlag
		return update(cmd, args[0], iam.ProfileUpdate{TenantID: &tenantID})
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate [profile-id|email]",
	Short: "Reactivate a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		active := true
		return update(cmd, args[0], iam.ProfileUpdate{Active: &active})
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate [profile-id|email]",
	Short: "Deactivate a profile; it keeps its data but loses access",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		active := false
		return update(cmd, args[0], iam.ProfileUpdate{Active: &active})
	},
}
