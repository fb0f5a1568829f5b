package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/modules/warehouse"
	"github.com/sofiapulse/pulse/modules/warehouse/domain/skill"
	"github.com/sofiapulse/pulse/modules/warehouse/services"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

func newAggregateCmd() *cobra.Command {
	var params services.AggregateParams
	var trace, actor string

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Rebuild an aggregate table from its canonical source",
		Long: `Runs one aggregation pass for a registry aggregation. The rewrite strategy
(replace, upsert, append) comes from the registry; --dry-run executes the same
statements and rolls back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModule(cmd, "aggregate", serrors.CodeAggregationError,
				skill.Request{TraceID: trace, Actor: actor, DryRun: params.DryRun, Params: params},
				func(ctx context.Context, mod *warehouse.Module) (map[string]any, error) {
					result, err := mod.Aggregator.Run(ctx, params)
					if err != nil {
						return nil, err
					}
					data := map[string]any{
						"run_id":      result.RunID,
						"aggregation": result.Aggregation,
						"mode":        result.Mode,
						"dry_run":     result.DryRun,
						"source_rows": result.SourceRows,
						"affected":    result.Affected,
					}
					if len(result.Queries) > 0 {
						data["queries"] = result.Queries
					}
					return data, nil
				})
		},
	}

	cmd.Flags().StringVar(&params.Aggregation, "aggregation", "", "registry aggregation id")
	cmd.Flags().StringVar(&params.Mode, "mode", "", "full|date_range")
	cmd.Flags().StringVar(&params.Since, "since", "", "window start, YYYY-MM-DD (date_range only)")
	cmd.Flags().StringVar(&params.Until, "until", "", "window end, YYYY-MM-DD inclusive (date_range only)")
	cmd.Flags().BoolVar(&params.DryRun, "dry-run", false, "execute and roll back, reporting real counts")
	cmd.Flags().StringVar(&trace, "trace-id", "", "trace id to propagate (generated when empty)")
	cmd.Flags().StringVar(&actor, "actor", "", "caller identity for the audit log")
	return cmd
}
