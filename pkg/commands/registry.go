package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/registry"
	"github.com/sofiapulse/pulse/pkg/configuration"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and validate the normalization registry",
	}
	cmd.AddCommand(newRegistryValidateCmd(), newRegistryListCmd())
	return cmd
}

func registryPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		return path
	}
	return configuration.Use().RegistryPath
}

func newRegistryValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "validate",
		Short:         "Parse and validate a registry document",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := registryPath(cmd)
			reg, err := registry.Load(path)
			if err != nil {
				return err
			}
			fmt.Printf("%s: ok (%d domains, %d aggregations)\n", path, len(reg.Domains), len(reg.Aggregations))
			return nil
		},
	}
	cmd.Flags().String("file", "", "registry file (defaults to REGISTRY_PATH)")
	return cmd
}

func newRegistryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List registry domains and aggregations",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Load(registryPath(cmd))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tID\tENABLED\tTARGET\tDETAIL")
			for _, id := range reg.DomainIDs() {
				d := reg.Domains[id]
				fmt.Fprintf(w, "domain\t%s\t%t\t%s\t%d sources\n", id, d.Enabled, d.TargetTable, len(d.Sources))
			}
			for _, id := range reg.AggregationIDs() {
				a := reg.Aggregations[id]
				fmt.Fprintf(w, "aggregation\t%s\t%t\t%s\t%s from %s\n",
					id, a.Enabled, a.TargetTable, a.UpdateStrategy, a.SourceTable)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("file", "", "registry file (defaults to REGISTRY_PATH)")
	return cmd
}
