// Package search ranks and pages the catalog for presentation.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letterFolds spells out Latin letters that carry no combining mark, so
// decomposition alone cannot reduce them to ASCII.
var letterFolds = strings.NewReplacer(
	"ø", "o", "ł", "l", "đ", "d", "ð", "d", "ħ", "h", "ı", "i",
	"æ", "ae", "œ", "oe", "ß", "ss", "þ", "th",
)

// Normalize lower-cases s and strips diacritics, so "Pokémon" matches
// "pokemon" and "Łódź" matches "lodz".
func Normalize(s string) string {
	// transform.Chain is stateful; build one per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return letterFolds.Replace(strings.ToLower(out))
}

// Score rates how well name and description match query. Zero or less means
// no match.
//
// A substring hit of the whole query in the name is worth 3. Then every query
// token is compared with every name token (+2 when the name token contains it,
// +1 when it contains the name token) and every description token (+1 / +0.5
// by the same rule).
func Score(query, name, description string) float64 {
	q := strings.TrimSpace(Normalize(query))
	if q == "" {
		return 0
	}
	n := Normalize(name)
	d := Normalize(description)

	var score float64
	if strings.Contains(n, q) {
		score += 3
	}

	nameTokens := strings.Fields(n)
	descTokens := strings.Fields(d)
	for _, qt := range strings.Fields(q) {
		for _, nt := range nameTokens {
			if strings.Contains(nt, qt) {
				score += 2
			}
			if strings.Contains(qt, nt) {
				score += 1
			}
		}
		for _, dt := range descTokens {
			if strings.Contains(dt, qt) {
				score += 1
			}
			if strings.Contains(qt, dt) {
				score += 0.5
			}
		}
	}
	return score
}
