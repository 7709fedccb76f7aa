package migrations

import _ "embed"

//go:embed 2024031102_create_trainings.sql
var createTrainingsSQL string

func init() {
	Migrations.MustRegister(sqlMigration(createTrainingsSQL, "trainings"))
}
