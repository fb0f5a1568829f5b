// Package warehouse wires the normalization and aggregation engine: the
// registry, the dimension resolvers, the run services and the skill executor.
package warehouse

import (
	"github.com/sirupsen/logrus"

	"github.com/sofiapulse/pulse/modules/warehouse/infrastructure/persistence"
	"github.com/sofiapulse/pulse/modules/warehouse/services"
	"github.com/sofiapulse/pulse/pkg/eventbus"
)

// Module bundles the engine's services behind one constructor, so callers
// (the CLI, tests) assemble the wiring in a single place.
type Module struct {
	Registry      *services.RegistryService
	GeoResolver   *services.GeoResolverService
	Organizations *services.OrganizationResolverService
	Normalizer    *services.NormalizerService
	Aggregator    *services.AggregatorService
	Executor      *services.SkillExecutor
	EventBus      eventbus.EventBus
}

func NewModule(registryPath string, log *logrus.Logger) *Module {
	bus := eventbus.NewEventPublisher(log)
	reg := services.NewRegistryService(registryPath)
	runs := persistence.NewRunRepository()
	geo := services.NewGeoResolverService(persistence.NewGeoRepository(), persistence.NewGapRepository())

	return &Module{
		Registry:      reg,
		GeoResolver:   geo,
		Organizations: services.NewOrganizationResolverService(persistence.NewOrganizationRepository(), geo),
		Normalizer:    services.NewNormalizerService(reg, runs, bus),
		Aggregator:    services.NewAggregatorService(reg, runs, bus),
		Executor:      services.NewSkillExecutor(log),
		EventBus:      bus,
	}
}
