package tenants

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create an active tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tenant := &models.Tenant{Name: args[0], Active: true}
		if err := store.Companies.Create(ctx, tenant); err != nil {
			return fmt.Errorf("failed to create tenant: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tenant.ID)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		tenants, err := store.Companies.List(ctx, activeOnly)
		if err != nil {
			return fmt.Errorf("failed to list tenants: %w", err)
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tACTIVE\tCREATED_AT")
		for _, t := range tenants {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", t.ID, t.Name, t.Active, t.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func setActive(active bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Companies.SetActive(ctx, args[0], active); err != nil {
			return fmt.Errorf("failed to update tenant: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tactive=%t\n", args[0], active)
		return nil
	}
}

var activateCmd = &cobra.Command{
	Use:   "activate [tenant-id]",
	Short: "Reactivate a tenant",
	Args:  cobra.ExactArgs(1),
	RunE:  setActive(true),
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate [tenant-id]",
	Short: "Deactivate a tenant; its members lose tenant access",
	Args:  cobra.ExactArgs(1),
	RunE:  setActive(false),
}
