// Package dimension holds the canonical-form rules shared by the geo and
// organization resolvers and by the SQL resolver facade. The Go and PL/pgSQL
// implementations must agree; tests here are the reference behavior.
package dimension

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// orgSuffixes are legal-form suffix tokens removed from the end of
// organization names. Compared after punctuation stripping, so "S.A." and
// "s. a." both reduce to "sa".
var orgSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"llc":          true,
	"ltd":          true,
	"limited":      true,
	"sa":           true,
	"gmbh":         true,
	"co":           true,
	"corp":         true,
	"corporation":  true,
	"plc":          true,
	"ag":           true,
	"nv":           true,
	"bv":           true,
}

// placeholderNames are inputs the organization resolver treats as absent,
// keyed by their NormalizeOrgName form so spelling variants ("N/A", "n.a.")
// collapse onto one entry. The SQL resolver facade carries the same list.
var placeholderNames = map[string]bool{
	"":                true,
	"unknown":         true,
	"n a":             true,
	"na":              true,
	"none":            true,
	"null":            true,
	"nil":             true,
	"tbd":             true,
	"confidential":    true,
	"undisclosed":     true,
	"stealth":         true,
	"stealth startup": true,
}

// Normalize produces the alias_norm form used for dimension lookups:
// lowercased, diacritics stripped, everything but letters and digits removed.
// "U.S.A." -> "usa", "São Paulo" -> "saopaulo".
func Normalize(s string) string {
	folded, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeOrgName produces organizations.normalized_name: lowercased,
// diacritics and punctuation stripped, trailing legal-form suffixes removed,
// whitespace collapsed. "Acme, Inc." and "ACME Inc" both yield "acme".
func NormalizeOrgName(s string) string {
	folded, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		folded = s
	}
	lowered := strings.ToLower(folded)

	var b strings.Builder
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	trimmed := tokens
	for len(trimmed) > 1 && orgSuffixes[trimmed[len(trimmed)-1]] {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if len(trimmed) == 0 {
		trimmed = tokens
	}
	return strings.Join(trimmed, " ")
}

// IsPlaceholderName reports whether a free-form organization name carries no
// information and must not create a dimension row. Comparison happens on the
// normalized form, matching the SQL facade.
func IsPlaceholderName(s string) bool {
	return placeholderNames[NormalizeOrgName(s)]
}

// IsISOAlpha2 reports whether the input looks like a bare ISO alpha-2
// country code (exactly two uppercase ASCII letters).
func IsISOAlpha2(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// IsISOAlpha3 reports whether the input looks like a bare ISO alpha-3
// country code (exactly three uppercase ASCII letters).
func IsISOAlpha3(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// CanonicalStateCode uppercases a 2-3 letter state/province code; returns ""
// when the input does not look like a code.
func CanonicalStateCode(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 2 || len(trimmed) > 3 {
		return ""
	}
	for _, r := range trimmed {
		if !unicode.IsLetter(r) {
			return ""
		}
	}
	return strings.ToUpper(trimmed)
}
