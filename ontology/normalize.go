package ontology

import (
	"regexp"
	"strings"
)

// multiplicityRe matches a single bound ("1", "*", "many") or a range
// ("0..1", "1..*", "0..n").
var multiplicityRe = regexp.MustCompile(`^(\d+|\*|n|many)(\.\.(\d+|\*|n|many))?$`)

// NormalizeCategory maps free-form category text onto the closed set.
// Case, surrounding space, underscores and inner spaces are tolerated
// ("Part_Of", "is a"); unknown values become DefaultCategory.
func NormalizeCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", "-", " ", "-").Replace(s)
	for _, c := range Categories {
		if Category(s) == c {
			return c
		}
	}
	return DefaultCategory
}

// NormalizeCardinality returns s trimmed and lowercased when it reads as a
// multiplicity, DefaultCardinality otherwise.
func NormalizeCardinality(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || !multiplicityRe.MatchString(s) {
		return DefaultCardinality
	}
	return s
}

// NormalizeName trims s and substitutes fallback when nothing is left.
func NormalizeName(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}
