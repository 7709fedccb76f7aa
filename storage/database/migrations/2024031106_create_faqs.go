package migrations

import _ "embed"

//go:embed 2024031106_create_faqs.sql
var createFAQsSQL string

func init() {
	Migrations.MustRegister(sqlMigration(createFAQsSQL, "faqs"))
}
