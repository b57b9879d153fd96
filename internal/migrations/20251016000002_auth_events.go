package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20251016000002, down_20251016000002)
}

// up_20251016000002 creates the append-only auth_events table.
func up_20251016000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating auth_events table...")
	_, err := db.NewCreateTable().
		Model((*models.AuthEvent)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create auth_events table: %w", err)
	}

	err = createIndexes(ctx, db,
		index{name: "idx_auth_events_created_at", table: "auth_events", expr: "created_at"},
		index{name: "idx_auth_events_request_id", table: "auth_events", expr: "request_id"},
		index{name: "idx_auth_events_metrics_gin", table: "auth_events", expr: "gin (metrics jsonb_path_ops)", pgOnly: true},
	)
	if err != nil {
		return err
	}
	fmt.Println(" OK")
	return nil
}

// down_20251016000002 drops auth_events.
func down_20251016000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping auth_events table...")
	if _, err := db.NewDropTable().Model((*models.AuthEvent)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop auth_events table: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
