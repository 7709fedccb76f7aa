// Package migrations holds the database schema. Every file registers one migration, named after the file.
package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

var Migrations = migrate.NewMigrations()

// sqlMigration runs the up script, or drops tables in order on the way down.
func sqlMigration(up string, tables ...string) (migrate.MigrationFunc, migrate.MigrationFunc) {
	return func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, up)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			for _, tbl := range tables {
				if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tbl); err != nil {
					return err
				}
			}
			return nil
		}
}
