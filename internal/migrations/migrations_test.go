package migrations

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/boring-ventures/billiards-managementV1-sub001/internal/db/bunx"
)

func TestMigrateUpAndDown_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := bunx.NewDB(ctx, ":memory:", bunx.DefaultPoolOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	require.False(t, isPostgres(db))

	migrator := migrate.NewMigrator(db, Migrations)
	require.NoError(t, migrator.Init(ctx))

	group, err := migrator.Migrate(ctx)
	require.NoError(t, err)
	assert.NotZero(t, group.ID)

	for _, table := range []string{"tenants", "profiles", "auth_events", "pool_tables", "products"} {
		var count int
		err := db.NewSelect().
			TableExpr("sqlite_master").
			ColumnExpr("count(*)").
			Where("type = 'table' AND name = ?", table).
			Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}

	for _, name := range []string{"idx_profiles_tenant_id", "idx_auth_events_request_id", "idx_pool_tables_tenant_id", "idx_products_tenant_id"} {
		var count int
		err := db.NewSelect().
			TableExpr("sqlite_master").
			ColumnExpr("count(*)").
			Where("type = 'index' AND name = ?", name).
			Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "index %s should exist", name)
	}

	_, err = migrator.Rollback(ctx)
	require.NoError(t, err)

	var remaining int
	err = db.NewSelect().
		TableExpr("sqlite_master").
		ColumnExpr("count(*)").
		Where("type = 'table' AND name IN (?)", bun.In([]string{"tenants", "profiles", "pool_tables"})).
		Scan(ctx, &remaining)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestIndexDDL(t *testing.T) {
	assert.Equal(t,
		"CREATE INDEX IF NOT EXISTS idx_products_tenant_id ON products(tenant_id)",
		tenantIndex("products").ddl())

	gin := index{name: "idx_e_m", table: "e", expr: "gin (m jsonb_path_ops)", pgOnly: true}
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS idx_e_m ON e USING gin (m jsonb_path_ops)", gin.ddl())
}
