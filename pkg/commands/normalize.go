package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/modules/warehouse"
	"github.com/sofiapulse/pulse/modules/warehouse/domain/skill"
	"github.com/sofiapulse/pulse/modules/warehouse/services"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

func newNormalizeCmd() *cobra.Command {
	var params services.NormalizeParams
	var trace, actor string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Lift staging rows of a domain into its canonical table",
		Long: `Runs one normalization pass for a registry domain. All row movement is a
single INSERT ... SELECT per source inside one transaction; --dry-run executes
the same statements and rolls back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModule(cmd, "normalize_domain", serrors.CodeNormalizationError,
				skill.Request{TraceID: trace, Actor: actor, DryRun: params.DryRun, Params: params},
				func(ctx context.Context, mod *warehouse.Module) (map[string]any, error) {
					result, err := mod.Normalizer.Run(ctx, params)
					if err != nil {
						return nil, err
					}
					data := map[string]any{
						"run_id":   result.RunID,
						"domain":   result.Domain,
						"mode":     result.Mode,
						"dry_run":  result.DryRun,
						"affected": result.Affected,
						"sources":  result.Sources,
					}
					if len(result.Queries) > 0 {
						data["queries"] = result.Queries
					}
					return data, nil
				})
		},
	}

	cmd.Flags().StringVar(&params.Domain, "domain", "", "registry domain id")
	cmd.Flags().StringVar(&params.Mode, "mode", "", "full|incremental|date_range")
	cmd.Flags().StringVar(&params.Since, "since", "", "window start, YYYY-MM-DD (date_range only)")
	cmd.Flags().StringVar(&params.Until, "until", "", "window end, YYYY-MM-DD inclusive (date_range only)")
	cmd.Flags().StringVar(&params.SourceFilter, "source", "", "restrict the run to one source id")
	cmd.Flags().BoolVar(&params.DryRun, "dry-run", false, "execute and roll back, reporting real counts")
	cmd.Flags().StringVar(&trace, "trace-id", "", "trace id to propagate (generated when empty)")
	cmd.Flags().StringVar(&actor, "actor", "", "caller identity for the audit log")
	return cmd
}
