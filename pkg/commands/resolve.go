package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/sofiapulse/pulse/modules/warehouse"
	"github.com/sofiapulse/pulse/modules/warehouse/domain/skill"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// resolve commands exercise the dimension resolvers directly, for curation:
// checking how a raw value would resolve and registering aliases for gaps.
func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve raw values against the dimension tables",
	}
	cmd.AddCommand(newResolveCountryCmd(), newResolveOrgCmd(), newAliasAddCmd(), newStateAddCmd(), newCityAddCmd())
	return cmd
}

func newResolveCountryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "country <raw value>",
		Short:         "Resolve a raw country string to a country id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModule(cmd, "resolve_country", serrors.CodeDBConnectionError, skill.Request{},
				func(ctx context.Context, mod *warehouse.Module) (map[string]any, error) {
					id, err := mod.GeoResolver.ResolveCountry(ctx, args[0])
					if err != nil {
						return nil, err
					}
					return map[string]any{"input": args[0], "country_id": id, "resolved": id != nil}, nil
				})
		},
	}
	return cmd
}

func newResolveOrgCmd() *cobra.Command {
	var create bool
	cmd := &cobra.Command{
		Use:           "org <raw name>",
		Short:         "Resolve a raw organization name to an organization id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModule(cmd, "resolve_org", serrors.CodeDBConnectionError, skill.Request{},
				func(ctx context.Context, mod *warehouse.Module) (map[string]any, error) {
					var (
						id  *int64
						err error
					)
					if create {
						id, err = mod.Organizations.GetOrCreate(ctx, args[0], "", "", "", "manual")
					} else {
						id, err = mod.Organizations.Find(ctx, args[0])
					}
					if err != nil {
						return nil, err
					}
					return map[string]any{"input": args[0], "organization_id": id, "resolved": id != nil}, nil
				})
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "create the organization when it does not exist")
	return cmd
}

func newAliasAddCmd() *cobra.Command {
	var aliasType string
	cmd := &cobra.Command{
		Use:           "alias <country code> <alias>",
		Short:         "Register a country alias, closing a resolver gap",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModule(cmd, "register_alias", serrors.CodeDBConnectionError, skill.Request{},
				func(ctx context.Context, mod *warehouse.Module) (map[string]any, error) {
					if err := mod.GeoResolver.RegisterAlias(ctx, args[0], args[1], aliasType); err != nil {
						return nil, err
					}
					return map[string]any{"country_code": args[0], "alias": args[1], "alias_type": aliasType}, nil
				})
		},
	}
	cmd.Flags().StringVar(&aliasType, "type", "variant", "alias type: common|variant")
	return cmd
}

func newStateAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "state <country code> <state code> <name>",
		Short:         "Register a state, closing a resolver gap",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModule(cmd, "register_state", serrors.CodeDBConnectionError, skill.Request{},
				func(ctx context.Context, mod *warehouse.Module) (map[string]any, error) {
					id, err := mod.GeoResolver.RegisterState(ctx, args[0], args[1], args[2])
					if err != nil {
						return nil, err
					}
					return map[string]any{"country_code": args[0], "state_code": args[1], "name": args[2], "state_id": id}, nil
				})
		},
	}
	return cmd
}

func newCityAddCmd() *cobra.Command {
	var stateCode string
	cmd := &cobra.Command{
		Use:           "city <country code> <name>",
		Short:         "Register a city, closing a resolver gap",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withModule(cmd, "register_city", serrors.CodeDBConnectionError, skill.Request{},
				func(ctx context.Context, mod *warehouse.Module) (map[string]any, error) {
					id, err := mod.GeoResolver.RegisterCity(ctx, args[0], stateCode, args[1])
					if err != nil {
						return nil, err
					}
					return map[string]any{"country_code": args[0], "state_code": stateCode, "name": args[1], "city_id": id}, nil
				})
		},
	}
	cmd.Flags().StringVar(&stateCode, "state", "", "state code to place the city under")
	return cmd
}
