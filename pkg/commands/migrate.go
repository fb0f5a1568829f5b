package commands

import (
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/pkg/configuration"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}
	cmd.AddCommand(
		newGooseCmd("up", "Apply all pending migrations", goose.Up),
		newGooseCmd("down", "Roll back the most recent migration", goose.Down),
		newGooseCmd("status", "Print migration status", goose.Status),
	)
	return cmd
}

func newGooseCmd(use, short string, fn func(*sql.DB, string, ...goose.OptionsFunc) error) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			if !conf.Database.Configured() {
				return serrors.NewError(serrors.CodeDBConfigMissing,
					"database connection is not configured (set DB_HOST, DB_NAME, DB_USER)")
			}

			db, err := openSQLDB(conf.Database.Opts)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := goose.SetDialect("postgres"); err != nil {
				return err
			}
			return fn(db, conf.MigrationsDir)
		},
	}
}

func openSQLDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, serrors.NewError(serrors.CodeDBConnectionError, err.Error()).WithCause(err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, serrors.NewError(serrors.CodeDBConnectionError, err.Error()).AsRetryable().WithCause(err)
	}
	return db, nil
}
