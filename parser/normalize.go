package parser

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds display text into a lowercase ASCII alphanumeric token,
// so "Café", "CAFE" and "café®" all become "cafe".
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// transform chains carry state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.Predicate(isNonASCII)))
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isNonASCII(r rune) bool {
	return r > unicode.MaxASCII
}

// BrandSet is an allow-list of normalized brand tokens.
type BrandSet map[string]struct{}

// NewBrandSet normalizes each raw brand name into the set.
func NewBrandSet(brands ...string) BrandSet {
	set := make(BrandSet, len(brands))
	for _, brand := range brands {
		if token := Normalize(brand); token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the displayed label normalizes to an allowed token.
func (s BrandSet) Contains(label string) bool {
	token := Normalize(label)
	if token == "" {
		return false
	}
	_, ok := s[token]
	return ok
}
