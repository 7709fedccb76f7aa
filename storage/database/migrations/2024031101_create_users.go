package migrations

import _ "embed"

//go:embed 2024031101_create_users.sql
var createUsersSQL string

func init() {
	Migrations.MustRegister(sqlMigration(createUsersSQL, "users"))
}
