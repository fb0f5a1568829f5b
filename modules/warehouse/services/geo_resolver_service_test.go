package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sofiapulse/pulse/modules/warehouse/infrastructure/persistence"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

type recordedGap struct {
	Level    string
	RawValue string
	Details  map[string]any
}

type fakeGapStore struct {
	gaps []recordedGap
}

func (f *fakeGapStore) Insert(_ context.Context, level, rawValue string, details map[string]any) error {
	f.gaps = append(f.gaps, recordedGap{Level: level, RawValue: rawValue, Details: details})
	return nil
}

type stateKey struct {
	CountryID int64
	Key       string
}

type ensuredState struct {
	CountryID      int64
	StateCode      string
	Name           string
	NormalizedName string
}

type ensuredCity struct {
	CountryID      int64
	StateID        *int64
	Name           string
	NormalizedName string
}

type fakeGeoStore struct {
	aliases    map[string][]persistence.CountryAliasMatch
	iso2       map[string]int64
	iso3       map[string]int64
	stateCodes map[stateKey]int64
	stateNames map[stateKey]int64
	cities     map[string][]int64
	aliasNorms []string

	ensuredStates []ensuredState
	ensuredCities []ensuredCity
}

func (f *fakeGeoStore) FindCountryByAlias(_ context.Context, aliasNorm string) ([]persistence.CountryAliasMatch, error) {
	return f.aliases[aliasNorm], nil
}

func (f *fakeGeoStore) FindCountryByISO2(_ context.Context, code string) (*int64, error) {
	if id, ok := f.iso2[code]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakeGeoStore) FindCountryByISO3(_ context.Context, code string) (*int64, error) {
	if id, ok := f.iso3[code]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakeGeoStore) FindStateByCode(_ context.Context, countryID int64, stateCode string) (*int64, error) {
	if id, ok := f.stateCodes[stateKey{countryID, stateCode}]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakeGeoStore) FindStateByName(_ context.Context, countryID int64, normalizedName string) (*int64, error) {
	if id, ok := f.stateNames[stateKey{countryID, normalizedName}]; ok {
		return &id, nil
	}
	return nil, nil
}

func (f *fakeGeoStore) FindCityIDs(_ context.Context, _ int64, _ *int64, normalizedName string) ([]int64, error) {
	return f.cities[normalizedName], nil
}

func (f *fakeGeoStore) InsertAlias(context.Context, string, string, string, string) error {
	return nil
}

func (f *fakeGeoStore) EnsureState(_ context.Context, countryID int64, stateCode, name, normalizedName string) (int64, error) {
	f.ensuredStates = append(f.ensuredStates, ensuredState{countryID, stateCode, name, normalizedName})
	return int64(100 + len(f.ensuredStates)), nil
}

func (f *fakeGeoStore) EnsureCity(_ context.Context, countryID int64, stateID *int64, name, normalizedName string) (int64, error) {
	f.ensuredCities = append(f.ensuredCities, ensuredCity{countryID, stateID, name, normalizedName})
	return int64(200 + len(f.ensuredCities)), nil
}

func (f *fakeGeoStore) CountryAliasNorms(context.Context) ([]string, error) {
	return f.aliasNorms, nil
}

func newGeoFixture(geo *fakeGeoStore) (*GeoResolverService, *fakeGapStore) {
	if geo.aliases == nil {
		geo.aliases = map[string][]persistence.CountryAliasMatch{}
	}
	gaps := &fakeGapStore{}
	return NewGeoResolverService(geo, gaps), gaps
}

func TestResolveCountry_PrefersCommonAlias(t *testing.T) {
	svc, gaps := newGeoFixture(&fakeGeoStore{
		aliases: map[string][]persistence.CountryAliasMatch{
			"georgia": {
				{CountryID: 7, AliasType: "variant"},
				{CountryID: 3, AliasType: "common"},
			},
		},
	})

	id, err := svc.ResolveCountry(context.Background(), "Georgia")
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(3), *id)
	require.Empty(t, gaps.gaps)
}

func TestResolveCountry_FirstClaimantWithoutCommon(t *testing.T) {
	svc, _ := newGeoFixture(&fakeGeoStore{
		aliases: map[string][]persistence.CountryAliasMatch{
			"korea": {
				{CountryID: 5, AliasType: "variant"},
				{CountryID: 9, AliasType: "variant"},
			},
		},
	})

	id, err := svc.ResolveCountry(context.Background(), "Korea")
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(5), *id)
}

func TestResolveCountry_ISOFallbacks(t *testing.T) {
	svc, gaps := newGeoFixture(&fakeGeoStore{
		iso2: map[string]int64{"US": 1},
		iso3: map[string]int64{"DEU": 2},
	})

	id, err := svc.ResolveCountry(context.Background(), "US")
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(1), *id)

	id, err = svc.ResolveCountry(context.Background(), "DEU")
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(2), *id)

	require.Empty(t, gaps.gaps)
}

func TestResolveCountry_MissLogsGapWithSuggestions(t *testing.T) {
	svc, gaps := newGeoFixture(&fakeGeoStore{
		aliasNorms: []string{"germany", "france"},
	})

	id, err := svc.ResolveCountry(context.Background(), "Germny")
	require.NoError(t, err)
	require.Nil(t, id)

	require.Len(t, gaps.gaps, 1)
	require.Equal(t, "country", gaps.gaps[0].Level)
	require.Equal(t, "Germny", gaps.gaps[0].RawValue)
	require.Equal(t, []string{"germany"}, gaps.gaps[0].Details["suggestions"])
}

func TestResolveCountry_EmptyInputIsNotAGap(t *testing.T) {
	svc, gaps := newGeoFixture(&fakeGeoStore{})

	id, err := svc.ResolveCountry(context.Background(), "   ")
	require.NoError(t, err)
	require.Nil(t, id)
	require.Empty(t, gaps.gaps)
}

func TestResolveState_CodeBeforeName(t *testing.T) {
	svc, gaps := newGeoFixture(&fakeGeoStore{
		stateCodes: map[stateKey]int64{{1, "CA"}: 11},
		stateNames: map[stateKey]int64{{1, "california"}: 12},
	})

	id, err := svc.ResolveState(context.Background(), 1, "ca")
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(11), *id)

	id, err = svc.ResolveState(context.Background(), 1, "California")
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(12), *id)

	id, err = svc.ResolveState(context.Background(), 1, "Bavaria")
	require.NoError(t, err)
	require.Nil(t, id)
	require.Len(t, gaps.gaps, 1)
	require.Equal(t, "state", gaps.gaps[0].Level)
}

func TestResolveCity_AmbiguityStaysNil(t *testing.T) {
	svc, gaps := newGeoFixture(&fakeGeoStore{
		cities: map[string][]int64{
			"springfield": {21, 22},
			"portland":    {31},
		},
	})

	id, err := svc.ResolveCity(context.Background(), 1, nil, "Portland")
	require.NoError(t, err)
	require.NotNil(t, id)
	require.Equal(t, int64(31), *id)

	id, err = svc.ResolveCity(context.Background(), 1, nil, "Springfield")
	require.NoError(t, err)
	require.Nil(t, id)

	id, err = svc.ResolveCity(context.Background(), 1, nil, "Gotham")
	require.NoError(t, err)
	require.Nil(t, id)

	require.Len(t, gaps.gaps, 2)
	require.Equal(t, "city_ambiguous", gaps.gaps[0].Level)
	require.Equal(t, "city", gaps.gaps[1].Level)
}

func TestResolve_CountryMissShortCircuits(t *testing.T) {
	svc, gaps := newGeoFixture(&fakeGeoStore{})

	ref, err := svc.Resolve(context.Background(), "Atlantis", "Poseidonis", "Tritonopolis")
	require.NoError(t, err)
	require.Nil(t, ref.CountryID)
	require.Nil(t, ref.StateID)
	require.Nil(t, ref.CityID)

	// Only the country miss is a gap; state and city were never attempted.
	require.Len(t, gaps.gaps, 1)
	require.Equal(t, "country", gaps.gaps[0].Level)
}

func TestRegisterState(t *testing.T) {
	geo := &fakeGeoStore{iso2: map[string]int64{"US": 1}}
	svc, _ := newGeoFixture(geo)

	id, err := svc.RegisterState(context.Background(), "us", "ca", "California")
	require.NoError(t, err)
	require.NotZero(t, id)

	require.Len(t, geo.ensuredStates, 1)
	require.Equal(t, ensuredState{
		CountryID:      1,
		StateCode:      "CA",
		Name:           "California",
		NormalizedName: "california",
	}, geo.ensuredStates[0])

	_, err = svc.RegisterState(context.Background(), "XX", "CA", "California")
	requireCode(t, err, serrors.CodeParamInvalid)
}

func TestRegisterCity(t *testing.T) {
	geo := &fakeGeoStore{
		iso2:       map[string]int64{"US": 1},
		stateCodes: map[stateKey]int64{{1, "OR"}: 44},
	}
	svc, _ := newGeoFixture(geo)

	id, err := svc.RegisterCity(context.Background(), "US", "OR", "Portland")
	require.NoError(t, err)
	require.NotZero(t, id)

	require.Len(t, geo.ensuredCities, 1)
	require.Equal(t, int64(1), geo.ensuredCities[0].CountryID)
	require.NotNil(t, geo.ensuredCities[0].StateID)
	require.Equal(t, int64(44), *geo.ensuredCities[0].StateID)
	require.Equal(t, "portland", geo.ensuredCities[0].NormalizedName)

	_, err = svc.RegisterCity(context.Background(), "US", "WA", "Seattle")
	requireCode(t, err, serrors.CodeParamInvalid)
}
