package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20251016000003, down_20251016000003)
}

// up_20251016000003 creates the tenant-scoped venue tables.
func up_20251016000003(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		name  string
		model any
	}{
		{"pool_tables", (*models.PoolTable)(nil)},
		{"products", (*models.Product)(nil)},
	}

	for _, tbl := range tables {
		fmt.Printf(" [up] creating %s table...", tbl.name)
		_, err := db.NewCreateTable().
			Model(tbl.model).
			IfNotExists().
			ForeignKey(`("tenant_id") REFERENCES "tenants" ("id") ON DELETE CASCADE`).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create %s table: %w", tbl.name, err)
		}

		if err := createIndexes(ctx, db, tenantIndex(tbl.name)); err != nil {
			return err
		}
		fmt.Println(" OK")
	}
	return nil
}

// down_20251016000003 drops the venue tables.
func down_20251016000003(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{(*models.Product)(nil), (*models.PoolTable)(nil)} {
		fmt.Print(" [down] dropping venue table...")
		if _, err := db.NewDropTable().Model(model).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop venue table: %w", err)
		}
		fmt.Println(" OK")
	}
	return nil
}
