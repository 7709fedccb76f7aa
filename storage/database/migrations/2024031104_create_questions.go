package migrations

import _ "embed"

//go:embed 2024031104_create_questions.sql
var createQuestionsSQL string

func init() {
	Migrations.MustRegister(sqlMigration(createQuestionsSQL, "questions"))
}
