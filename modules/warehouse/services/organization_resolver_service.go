package services

import (
	"context"
	"strings"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/dimension"
	"github.com/sofiapulse/pulse/modules/warehouse/infrastructure/persistence"
)

// OrganizationStore is the slice of the organization repository the resolver
// consumes.
type OrganizationStore interface {
	Upsert(ctx context.Context, org persistence.OrganizationInsert) (int64, error)
	FindByNormalizedName(ctx context.Context, normalizedName string) (*int64, error)
}

// OrganizationResolverService maps raw organization names to canonical
// organization rows, creating them on first sight. Placeholder names
// ("unknown", "n/a", "stealth startup", ...) resolve to nil.
type OrganizationResolverService struct {
	orgs OrganizationStore
	geo  *GeoResolverService
}

func NewOrganizationResolverService(orgs OrganizationStore, geo *GeoResolverService) *OrganizationResolverService {
	return &OrganizationResolverService{orgs: orgs, geo: geo}
}

// GetOrCreate returns the id of the canonical organization for rawName,
// inserting it if no row with the same normalized name exists yet. Location
// hints only enrich columns that are still NULL; an existing non-null value
// is never overwritten. source names the feed (or operator) the sighting
// came from.
func (s *OrganizationResolverService) GetOrCreate(ctx context.Context, rawName, website, country, location, source string) (*int64, error) {
	trimmed := strings.TrimSpace(rawName)
	if trimmed == "" || dimension.IsPlaceholderName(trimmed) {
		return nil, nil
	}

	norm := dimension.NormalizeOrgName(trimmed)
	if norm == "" {
		return nil, nil
	}

	var countryID *int64
	if country != "" {
		var err error
		countryID, err = s.geo.ResolveCountry(ctx, country)
		if err != nil {
			return nil, err
		}
	}

	id, err := s.orgs.Upsert(ctx, persistence.OrganizationInsert{
		Name:             trimmed,
		NormalizedName:   norm,
		Website:          strings.TrimSpace(website),
		PrimaryCountryID: countryID,
		PrimaryLocation:  strings.TrimSpace(location),
		Source:           strings.TrimSpace(source),
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Find looks up an organization by raw name without creating it.
func (s *OrganizationResolverService) Find(ctx context.Context, rawName string) (*int64, error) {
	norm := dimension.NormalizeOrgName(strings.TrimSpace(rawName))
	if norm == "" {
		return nil, nil
	}
	return s.orgs.FindByNormalizedName(ctx, norm)
}
