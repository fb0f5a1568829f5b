package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/sofiapulse/pulse/pkg/composables"
)

// OrganizationRepository owns the organizations dimension table.
type OrganizationRepository struct{}

func NewOrganizationRepository() *OrganizationRepository {
	return &OrganizationRepository{}
}

// OrganizationInsert carries the attributes observed for an organization on
// first (or repeat) sight.
type OrganizationInsert struct {
	Name             string
	NormalizedName   string
	Website          string
	PrimaryCountryID *int64
	PrimaryLocation  string
	Source           string
}

// Upsert inserts the organization or, on a normalized-name collision, enriches
// NULL columns of the existing row without overwriting non-null values. The
// id is returned in both arms, so two inputs with the same normalized name
// always yield the same id, within a process and across processes.
func (r *OrganizationRepository) Upsert(ctx context.Context, org OrganizationInsert) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO sofia.organizations (name, normalized_name, website, primary_country_id, primary_location, source)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (normalized_name) DO UPDATE SET
	website            = COALESCE(sofia.organizations.website, EXCLUDED.website),
	primary_country_id = COALESCE(sofia.organizations.primary_country_id, EXCLUDED.primary_country_id),
	primary_location   = COALESCE(sofia.organizations.primary_location, EXCLUDED.primary_location),
	updated_at         = NOW()
RETURNING id
`,
		org.Name,
		org.NormalizedName,
		pgNullableText(org.Website),
		pgNullableInt8(org.PrimaryCountryID),
		pgNullableText(org.PrimaryLocation),
		pgNullableText(org.Source),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindByNormalizedName returns the id for a normalized name, or nil.
func (r *OrganizationRepository) FindByNormalizedName(ctx context.Context, normalizedName string) (*int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
SELECT id FROM sofia.organizations WHERE normalized_name = $1
`, normalizedName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}
