package persistence

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sofiapulse/pulse/pkg/composables"
)

// GeoRepository reads and writes the geographic dimension tables. All lookups
// are by normalized form; writes converge under concurrency through unique
// constraints plus ON CONFLICT.
type GeoRepository struct{}

func NewGeoRepository() *GeoRepository {
	return &GeoRepository{}
}

// CountryAliasMatch is one candidate produced by an alias lookup.
type CountryAliasMatch struct {
	CountryID int64
	AliasType string
}

func (r *GeoRepository) FindCountryByAlias(ctx context.Context, aliasNorm string) ([]CountryAliasMatch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT c.id, ca.alias_type
FROM sofia.country_aliases ca
JOIN sofia.countries c ON c.iso_alpha2 = ca.country_code
WHERE ca.alias_norm = $1
ORDER BY c.id
`, aliasNorm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CountryAliasMatch, 0, 2)
	for rows.Next() {
		var m CountryAliasMatch
		if err := rows.Scan(&m.CountryID, &m.AliasType); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *GeoRepository) FindCountryByISO2(ctx context.Context, code string) (*int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM sofia.countries WHERE iso_alpha2 = $1`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *GeoRepository) FindCountryByISO3(ctx context.Context, code string) (*int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id int64
	err = tx.QueryRow(ctx, `SELECT id FROM sofia.countries WHERE iso_alpha3 = $1`, code).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *GeoRepository) FindStateByCode(ctx context.Context, countryID int64, stateCode string) (*int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
SELECT id FROM sofia.states WHERE country_id = $1 AND state_code = $2
`, countryID, stateCode).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *GeoRepository) FindStateByName(ctx context.Context, countryID int64, normalizedName string) (*int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
SELECT id FROM sofia.states WHERE country_id = $1 AND normalized_name = $2
`, countryID, normalizedName).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// FindCityIDs returns every city matching the normalized name under the
// country, optionally narrowed to a state. The caller applies the ambiguity
// rule: more than one candidate without a state means no match.
func (r *GeoRepository) FindCityIDs(ctx context.Context, countryID int64, stateID *int64, normalizedName string) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT id FROM sofia.cities
WHERE country_id = $1
  AND ($2::bigint IS NULL OR state_id = $2)
  AND normalized_name = $3
ORDER BY id
`, countryID, pgNullableInt8(stateID), normalizedName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]int64, 0, 2)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// InsertAlias records a country alias. Concurrent runs converge: the unique
// constraint on (country_code, alias_norm) plus DO NOTHING makes replays no-ops.
func (r *GeoRepository) InsertAlias(ctx context.Context, countryCode, alias, aliasNorm, aliasType string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
INSERT INTO sofia.country_aliases (country_code, alias, alias_norm, alias_type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (country_code, alias_norm) DO NOTHING
`, countryCode, alias, aliasNorm, aliasType)
	return err
}

// EnsureState creates a state row on first sight and returns its id. The
// DO UPDATE arm writes back an existing value so RETURNING always yields the
// id; keys are never changed.
func (r *GeoRepository) EnsureState(ctx context.Context, countryID int64, stateCode, name, normalizedName string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO sofia.states (country_id, state_code, name, normalized_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (country_id, state_code) DO UPDATE SET name = sofia.states.name
RETURNING id
`, countryID, stateCode, name, normalizedName).Scan(&id)
	return id, err
}

// EnsureCity creates a city row on first sight and returns its id.
func (r *GeoRepository) EnsureCity(ctx context.Context, countryID int64, stateID *int64, name, normalizedName string) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	err = tx.QueryRow(ctx, `
INSERT INTO sofia.cities (country_id, state_id, name, normalized_name)
VALUES ($1, $2, $3, $4)
ON CONFLICT (country_id, state_id, normalized_name) DO UPDATE SET name = sofia.cities.name
RETURNING id
`, countryID, pgNullableInt8(stateID), name, normalizedName).Scan(&id)
	return id, err
}

// CountryAliasNorms lists every known alias_norm, used for nearest-candidate
// suggestions when logging gaps.
func (r *GeoRepository) CountryAliasNorms(ctx context.Context) ([]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `SELECT DISTINCT alias_norm FROM sofia.country_aliases ORDER BY alias_norm`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s pgtype.Text
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if s.Valid {
			out = append(out, s.String)
		}
	}
	return out, rows.Err()
}
