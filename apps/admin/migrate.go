package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/nyxmentor/portal/storage/database"
)

type migrationRunner interface {
	Up(ctx context.Context) (*migrate.MigrationGroup, error)
	Down(ctx context.Context) (*migrate.MigrationGroup, error)
	Status(ctx context.Context) (migrate.MigrationSlice, error)
}

type dbMigrations struct {
	db *sqlx.DB
}

func (m dbMigrations) Up(ctx context.Context) (*migrate.MigrationGroup, error) {
	return database.Migrate(ctx, m.db)
}

func (m dbMigrations) Down(ctx context.Context) (*migrate.MigrationGroup, error) {
	return database.Rollback(ctx, m.db)
}

func (m dbMigrations) Status(ctx context.Context) (migrate.MigrationSlice, error) {
	return database.MigrationStatus(ctx, m.db)
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return fmt.Errorf("%q requires a subcommand", cmd.CommandPath())
			}
			return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			group, err := cli.migrations.Up(cmd.Context())
			if err != nil {
				return err
			}
			if group.IsZero() {
				cli.printf("there are no new migrations to run\n")
				return nil
			}
			cli.printf("migrated to %s\n", group)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			group, err := cli.migrations.Down(cmd.Context())
			if err != nil {
				return err
			}
			if group.IsZero() {
				cli.printf("there are no groups to roll back\n")
				return nil
			}
			cli.printf("rolled back %s\n", group)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List the migrations and whether they were applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ms, err := cli.migrations.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range ms {
				state := "pending"
				if m.IsApplied() {
					state = "applied"
				}
				cli.printf("%s %s\n", m.Name, state)
			}
			return nil
		},
	})
	return cmd
}
