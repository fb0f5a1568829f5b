package services

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/dimension"
	"github.com/sofiapulse/pulse/modules/warehouse/infrastructure/persistence"
	"github.com/sofiapulse/pulse/pkg/metrics"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// GeoRef is the resolved (country_id, state_id, city_id) triple. Any id may
// be nil; resolution fills as many as it can and never fails on unresolvable
// input.
type GeoRef struct {
	CountryID *int64
	StateID   *int64
	CityID    *int64
}

// GeoStore is the slice of the geo repository the resolver consumes.
type GeoStore interface {
	FindCountryByAlias(ctx context.Context, aliasNorm string) ([]persistence.CountryAliasMatch, error)
	FindCountryByISO2(ctx context.Context, code string) (*int64, error)
	FindCountryByISO3(ctx context.Context, code string) (*int64, error)
	FindStateByCode(ctx context.Context, countryID int64, stateCode string) (*int64, error)
	FindStateByName(ctx context.Context, countryID int64, normalizedName string) (*int64, error)
	FindCityIDs(ctx context.Context, countryID int64, stateID *int64, normalizedName string) ([]int64, error)
	InsertAlias(ctx context.Context, countryCode, alias, aliasNorm, aliasType string) error
	EnsureState(ctx context.Context, countryID int64, stateCode, name, normalizedName string) (int64, error)
	EnsureCity(ctx context.Context, countryID int64, stateID *int64, name, normalizedName string) (int64, error)
	CountryAliasNorms(ctx context.Context) ([]string, error)
}

// GapStore records resolver misses.
type GapStore interface {
	Insert(ctx context.Context, level, rawValue string, details map[string]any) error
}

// GeoResolverService maps free-form (country, state, city) strings to
// dimension ids. Misses are appended to normalization_gaps with fuzzy
// nearest-candidate suggestions; only database errors propagate.
type GeoResolverService struct {
	geo  GeoStore
	gaps GapStore
}

func NewGeoResolverService(geo GeoStore, gaps GapStore) *GeoResolverService {
	return &GeoResolverService{geo: geo, gaps: gaps}
}

// Resolve resolves the triple top-down: country first, then state within
// the country, then city. A state miss is not fatal for the city lookup, but
// an ambiguous city (same normalized name in several states) stays nil.
func (s *GeoResolverService) Resolve(ctx context.Context, country, state, city string) (GeoRef, error) {
	ref := GeoRef{}

	countryID, err := s.ResolveCountry(ctx, country)
	if err != nil {
		return ref, err
	}
	ref.CountryID = countryID
	if countryID == nil {
		// Without a country there is nothing to anchor state or city to.
		return ref, nil
	}

	stateID, err := s.ResolveState(ctx, *countryID, state)
	if err != nil {
		return ref, err
	}
	ref.StateID = stateID

	cityID, err := s.ResolveCity(ctx, *countryID, stateID, city)
	if err != nil {
		return ref, err
	}
	ref.CityID = cityID
	return ref, nil
}

// ResolveCountry maps a free-form country string to a country id, or nil.
func (s *GeoResolverService) ResolveCountry(ctx context.Context, input string) (*int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	norm := dimension.Normalize(trimmed)
	if norm != "" {
		matches, err := s.geo.FindCountryByAlias(ctx, norm)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			// Prefer a 'common' alias over 'variant' when several
			// countries claim the same normalized form.
			for _, m := range matches {
				if m.AliasType == "common" {
					return &m.CountryID, nil
				}
			}
			return &matches[0].CountryID, nil
		}
	}

	if dimension.IsISOAlpha2(trimmed) {
		id, err := s.geo.FindCountryByISO2(ctx, trimmed)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}

	if dimension.IsISOAlpha3(trimmed) {
		id, err := s.geo.FindCountryByISO3(ctx, trimmed)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}

	if err := s.logGap(ctx, "country", trimmed, norm); err != nil {
		return nil, err
	}
	return nil, nil
}

// ResolveState maps a state string within a country. State is optional: a
// miss is logged and resolution continues with a nil state.
func (s *GeoResolverService) ResolveState(ctx context.Context, countryID int64, input string) (*int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	if code := dimension.CanonicalStateCode(trimmed); code != "" {
		id, err := s.geo.FindStateByCode(ctx, countryID, code)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}

	norm := dimension.Normalize(trimmed)
	if norm != "" {
		id, err := s.geo.FindStateByName(ctx, countryID, norm)
		if err != nil {
			return nil, err
		}
		if id != nil {
			return id, nil
		}
	}

	if err := s.logGap(ctx, "state", trimmed, norm); err != nil {
		return nil, err
	}
	return nil, nil
}

// ResolveCity maps a city string within a country (and optional state). When
// the state is unknown and several cities share the normalized name, the city
// stays nil rather than guessing.
func (s *GeoResolverService) ResolveCity(ctx context.Context, countryID int64, stateID *int64, input string) (*int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, nil
	}

	norm := dimension.Normalize(trimmed)
	if norm == "" {
		return nil, nil
	}

	ids, err := s.geo.FindCityIDs(ctx, countryID, stateID, norm)
	if err != nil {
		return nil, err
	}
	switch {
	case len(ids) == 1:
		return &ids[0], nil
	case len(ids) > 1:
		if err := s.logGap(ctx, "city_ambiguous", trimmed, norm); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		if err := s.logGap(ctx, "city", trimmed, norm); err != nil {
			return nil, err
		}
		return nil, nil
	}
}

// RegisterAlias records a manually curated country alias, e.g. "Brasil" -> BR.
func (s *GeoResolverService) RegisterAlias(ctx context.Context, countryCode, alias, aliasType string) error {
	return s.geo.InsertAlias(ctx, countryCode, alias, dimension.Normalize(alias), aliasType)
}

// RegisterState records a curated state under a country given by ISO code,
// closing 'state' gaps. Replays converge on the existing row's id.
func (s *GeoResolverService) RegisterState(ctx context.Context, countryCode, stateCode, name string) (int64, error) {
	countryID, err := s.geo.FindCountryByISO2(ctx, strings.ToUpper(strings.TrimSpace(countryCode)))
	if err != nil {
		return 0, err
	}
	if countryID == nil {
		return 0, serrors.NewFieldInvalidError("country_code", "unknown country "+strconv.Quote(countryCode))
	}
	code := dimension.CanonicalStateCode(stateCode)
	if code == "" {
		return 0, serrors.NewFieldInvalidError("state_code", "expected a 2-3 letter code")
	}
	norm := dimension.Normalize(name)
	if norm == "" {
		return 0, serrors.NewFieldInvalidError("name", "name normalizes to nothing")
	}
	return s.geo.EnsureState(ctx, *countryID, code, strings.TrimSpace(name), norm)
}

// RegisterCity records a curated city under a country (and optional state
// code), closing 'city' and 'city_ambiguous' gaps.
func (s *GeoResolverService) RegisterCity(ctx context.Context, countryCode, stateCode, name string) (int64, error) {
	countryID, err := s.geo.FindCountryByISO2(ctx, strings.ToUpper(strings.TrimSpace(countryCode)))
	if err != nil {
		return 0, err
	}
	if countryID == nil {
		return 0, serrors.NewFieldInvalidError("country_code", "unknown country "+strconv.Quote(countryCode))
	}
	var stateID *int64
	if code := dimension.CanonicalStateCode(stateCode); code != "" {
		stateID, err = s.geo.FindStateByCode(ctx, *countryID, code)
		if err != nil {
			return 0, err
		}
		if stateID == nil {
			return 0, serrors.NewFieldInvalidError("state_code", "unknown state "+strconv.Quote(stateCode))
		}
	}
	norm := dimension.Normalize(name)
	if norm == "" {
		return 0, serrors.NewFieldInvalidError("name", "name normalizes to nothing")
	}
	return s.geo.EnsureCity(ctx, *countryID, stateID, strings.TrimSpace(name), norm)
}

func (s *GeoResolverService) logGap(ctx context.Context, level, rawValue, norm string) error {
	metrics.ResolverGaps.WithLabelValues(level).Inc()

	details := map[string]any{"normalized": norm}
	if level == "country" && norm != "" {
		if known, err := s.geo.CountryAliasNorms(ctx); err == nil {
			if suggestions := nearest(norm, known, 3); len(suggestions) > 0 {
				details["suggestions"] = suggestions
			}
		}
	}
	if logger := loggerFromContext(ctx); logger != nil {
		logger.WithFields(logrus.Fields{"level": level, "raw_value": rawValue}).Debug("resolver gap")
	}
	return s.gaps.Insert(ctx, level, rawValue, details)
}

// nearest ranks candidates by Levenshtein distance to the input and returns
// up to n close ones. Purely advisory; never used for resolution itself.
func nearest(input string, candidates []string, n int) []string {
	ranks := fuzzy.RankFindNormalizedFold(input, candidates)
	if len(ranks) == 0 {
		return nil
	}
	sort.Sort(ranks)
	out := make([]string, 0, n)
	for _, r := range ranks {
		out = append(out, r.Target)
		if len(out) == n {
			break
		}
	}
	return out
}
