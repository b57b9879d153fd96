package tenants

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boring-ventures/billiards-managementV1-sub001/cmd/billiardsd/cmd/cmdutil"
	"github.com/boring-ventures/billiards-managementV1-sub001/internal/config"
)

var activeOnly bool

// TenantsCmd is the parent command for company management
var TenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "Manage companies",
}

func openStore(ctx context.Context) (*cmdutil.StoreBundle, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cmdutil.OpenStore(ctx, cfg)
}

func init() {
	TenantsCmd.AddCommand(createCmd)
	TenantsCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&activeOnly, "active", false, "Only list active tenants")
	TenantsCmd.AddCommand(activateCmd)
	TenantsCmd.AddCommand(deactivateCmd)
}
