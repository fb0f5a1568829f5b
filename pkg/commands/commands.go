// Package commands holds the pulse CLI subcommands. Each command resolves
// configuration, opens the pool when it needs one and delegates to the
// warehouse module's services.
package commands

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/modules/warehouse"
	"github.com/sofiapulse/pulse/modules/warehouse/domain/skill"
	"github.com/sofiapulse/pulse/pkg/composables"
	"github.com/sofiapulse/pulse/pkg/configuration"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// NewPulseCommands creates every pulse subcommand.
func NewPulseCommands() []*cobra.Command {
	return []*cobra.Command{
		newNormalizeCmd(),
		newAggregateCmd(),
		newRegistryCmd(),
		newResolveCmd(),
		newMigrateCmd(),
		newOpsCmd(),
	}
}

// openPool connects to Postgres and verifies the connection, translating the
// two failure shapes into the envelope taxonomy.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	conf := configuration.Use()
	if !conf.Database.Configured() {
		return nil, serrors.NewError(serrors.CodeDBConfigMissing,
			"database connection is not configured (set DB_HOST, DB_NAME, DB_USER)")
	}

	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		return nil, serrors.NewError(serrors.CodeDBConnectionError, err.Error()).AsRetryable().WithCause(err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, serrors.NewError(serrors.CodeDBConnectionError, err.Error()).AsRetryable().WithCause(err)
	}
	return pool, nil
}

// withModule is the scaffold shared by the data-moving commands: config,
// pool, module wiring, envelope printing. fn produces the Data payload.
func withModule(cmd *cobra.Command, skillName, fallbackCode string, req skill.Request,
	fn func(ctx context.Context, mod *warehouse.Module) (map[string]any, error),
) error {
	conf := configuration.Use()
	ctx := cmd.Context()

	pool, err := openPool(ctx)
	if err != nil {
		return printResponse(skill.Response{
			OK:     false,
			Errors: skill.FromError(err, serrors.CodeDBConnectionError),
			Meta:   skill.Meta{Skill: skillName},
		})
	}
	defer pool.Close()
	ctx = composables.WithPool(ctx, pool)

	mod := warehouse.NewModule(conf.RegistryPath, conf.Logger())
	resp := mod.Executor.Execute(ctx, skillName, req, fallbackCode, func(ctx context.Context) (map[string]any, error) {
		return fn(ctx, mod)
	})
	return printResponse(resp)
}

// printResponse writes the envelope to stdout. The process exits zero even
// for ok=false responses: failures are data, not crashes.
func printResponse(resp skill.Response) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}
