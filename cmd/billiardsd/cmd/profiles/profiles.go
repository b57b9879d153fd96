package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boring-ventures/billiards-managementV1-sub001/cmd/billiardsd/cmd/cmdutil"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/auth"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/config"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/repository"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/services/iam"
)

var (
	tenantFlag string
	roleFlag   string
)

// ProfilesCmd is the parent command for profile administration
var ProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage user profiles",
	Long: `Commands for approving and administering profiles directly from the server.
Changes run with SUPERADMIN rights.`,
}

// operator is the actor used for CLI changes.
var operator = auth.Caller{
	Identity:  auth.Identity{ID: "cli"},
	ProfileID: "cli",
	Role:      auth.RoleSuperAdmin,
	Active:    true,
}

func openStore(ctx context.Context) (*cmdutil.StoreBundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cmdutil.OpenStore(ctx, cfg)
}

// resolve accepts a profile id or an email.
func resolve(ctx context.Context, store *cmdutil.StoreBundle, ref string) (*models.Profile, error) {
	profile, err := store.Profiles.GetByID(ctx, ref)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	profile, err = store.Profiles.GetByEmail(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", ref, err)
	}
	return profile, nil
}

// update applies upd to the profile named by ref and prints the result.
func update(cmd *cobra.Command, ref string, upd iam.ProfileUpdate) error {
	ctx := cmd.Context()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	profile, err := resolve(ctx, store, ref)
	if err != nil {
		return err
	}
	updated, err := store.Service.Update(ctx, operator, profile.ID, upd)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	tenantID := updated.AssignedTenant()
	if tenantID == "" {
		tenantID = "-"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\tactive=%t\n", updated.ID, updated.Email, updated.Role, tenantID, updated.Active)
	return nil
}

func init() {
	ProfilesCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&tenantFlag, "tenant", "", "Only list profiles of this tenant")
	ProfilesCmd.AddCommand(setRoleCmd)
	setRoleCmd.Flags().StringVar(&roleFlag, "role", "", "Role to grant (USER, SELLER, ADMIN, SUPERADMIN)")
	ProfilesCmd.AddCommand(assignCmd)
	assignCmd.Flags().StringVar(&tenantFlag, "tenant", "", "Tenant id to assign; empty unassigns")
	ProfilesCmd.AddCommand(activateCmd)
	ProfilesCmd.AddCommand(deactivateCmd)
}
