package dimension

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"U.S.A.", "usa"},
		{"USA", "usa"},
		{"usa", "usa"},
		{"São Paulo", "saopaulo"},
		{"Côte d'Ivoire", "cotedivoire"},
		{"  United   Kingdom ", "unitedkingdom"},
		{"Česká republika", "ceskarepublika"},
		{"", ""},
		{"---", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeOrgName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme, Inc.", "acme"},
		{"ACME Inc", "acme"},
		{"Acme", "acme"},
		{"Globex S.A.", "globex"},
		{"Siemens AG", "siemens"},
		{"Initech LLC", "initech"},
		{"Wayne Enterprises Ltd", "wayne enterprises"},
		{"Cyberdyne  Systems   Corp", "cyberdyne systems"},
		// Multiple trailing suffixes are all removed.
		{"Tyrell Corp Ltd", "tyrell"},
		// A name that is nothing but a suffix keeps its tokens.
		{"Co", "co"},
		{"Müller GmbH", "muller"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeOrgName(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeOrgName_SameIDInvariant(t *testing.T) {
	// Any two spellings with the same normalized form must map to the same
	// organization row.
	require.Equal(t, NormalizeOrgName("Acme, Inc."), NormalizeOrgName("ACME Inc"))
	require.Equal(t, NormalizeOrgName("globex s.a."), NormalizeOrgName("Globex SA"))
}

func TestIsPlaceholderName(t *testing.T) {
	for _, s := range []string{
		"", "   ", "Unknown", "N/A", "n.a.", "none", "-", "NULL", "nil",
		"TBD", "Confidential", "Undisclosed", "Stealth", "Stealth Startup",
	} {
		require.True(t, IsPlaceholderName(s), "input %q", s)
	}
	for _, s := range []string{"Acme", "0", "x", "Stealth Robotics"} {
		require.False(t, IsPlaceholderName(s), "input %q", s)
	}
}

func TestIsISOAlpha2(t *testing.T) {
	require.True(t, IsISOAlpha2("US"))
	require.True(t, IsISOAlpha2("GB"))
	require.False(t, IsISOAlpha2("us"))
	require.False(t, IsISOAlpha2("USA"))
	require.False(t, IsISOAlpha2("U"))
	require.False(t, IsISOAlpha2("U1"))
}

func TestIsISOAlpha3(t *testing.T) {
	require.True(t, IsISOAlpha3("USA"))
	require.True(t, IsISOAlpha3("DEU"))
	require.False(t, IsISOAlpha3("usa"))
	require.False(t, IsISOAlpha3("US"))
	require.False(t, IsISOAlpha3("US1"))
}

func TestCanonicalStateCode(t *testing.T) {
	require.Equal(t, "CA", CanonicalStateCode("ca"))
	require.Equal(t, "NSW", CanonicalStateCode(" nsw "))
	require.Equal(t, "", CanonicalStateCode("California"))
	require.Equal(t, "", CanonicalStateCode("C"))
	require.Equal(t, "", CanonicalStateCode("C4"))
}