package migrations

import _ "embed"

//go:embed 2024031105_create_evaluations.sql
var createEvaluationsSQL string

func init() {
	Migrations.MustRegister(sqlMigration(createEvaluationsSQL, "evaluation_approvals", "evaluations"))
}
