package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// index is a secondary index created by a migration. Indexes with pgOnly set
// use PostgreSQL operator classes and are skipped on SQLite.
type index struct {
	name   string
	table  string
	expr   string
	pgOnly bool
}

func (ix index) ddl() string {
	if ix.pgOnly {
		return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING %s`, ix.name, ix.table, ix.expr)
	}
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s(%s)`, ix.name, ix.table, ix.expr)
}

// tenantIndex is the tenant_id lookup index every tenant-owned table carries.
func tenantIndex(table string) index {
	return index{name: "idx_" + table + "_tenant_id", table: table, expr: "tenant_id"}
}

func isPostgres(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}

// createIndexes creates each index the current dialect supports.
func createIndexes(ctx context.Context, db *bun.DB, indexes ...index) error {
	for _, ix := range indexes {
		if ix.pgOnly && !isPostgres(db) {
			continue
		}
		if _, err := db.ExecContext(ctx, ix.ddl()); err != nil {
			return fmt.Errorf("failed to create index %s: %w", ix.name, err)
		}
	}
	return nil
}
