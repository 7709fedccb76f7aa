package migrations

import _ "embed"

//go:embed 2024031103_create_progress.sql
var createProgressSQL string

func init() {
	Migrations.MustRegister(sqlMigration(createProgressSQL, "progress"))
}
