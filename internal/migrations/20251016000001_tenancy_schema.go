package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20251016000001, down_20251016000001)
}

// up_20251016000001 creates tenants and profiles.
func up_20251016000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating tenants table...")
	_, err := db.NewCreateTable().
		Model((*models.Tenant)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create tenants table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [up] creating profiles table...")
	_, err = db.NewCreateTable().
		Model((*models.Profile)(nil)).
		IfNotExists().
		ForeignKey(`("tenant_id") REFERENCES "tenants" ("id") ON DELETE SET NULL`).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	if err := createIndexes(ctx, db, tenantIndex("profiles")); err != nil {
		return err
	}
	fmt.Println(" OK")

	return nil
}

// down_20251016000001 drops profiles and tenants.
func down_20251016000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping profiles table...")
	if _, err := db.NewDropTable().Model((*models.Profile)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop profiles table: %w", err)
	}
	fmt.Println(" OK")

	fmt.Print(" [down] dropping tenants table...")
	if _, err := db.NewDropTable().Model((*models.Tenant)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop tenants table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
