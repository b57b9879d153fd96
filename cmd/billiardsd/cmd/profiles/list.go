package profiles

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles with their role and tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		profiles, err := store.Service.List(ctx, operator, tenantFlag)
		if err != nil {
			return fmt.Errorf("failed to list profiles: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tROLE\tTENANT\tACTIVE\tCREATED_AT")
		for _, p := range profiles {
			tenantID := p.AssignedTenant()
			if tenantID == "" {
				tenantID = "(waiting approval)"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n", p.ID, p.Email, p.Role, tenantID, p.Active, p.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}
