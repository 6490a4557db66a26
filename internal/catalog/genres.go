package catalog

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// GenreSet is a set of normalized genre tags
type GenreSet map[string]struct{}

// placeholderGenres are values the scraper emits when a page had no genre chips
var placeholderGenres = map[string]bool{
	"unknown":     true,
	"back to top": true,
	"n/a":         true,
}

// NormalizeGenre returns the comparison form of a genre tag:
// NFC, lower-cased, trimmed, inner whitespace collapsed to one space.
func NormalizeGenre(g string) string {
	if g == "" {
		return ""
	}
	g = norm.NFC.String(g)
	g = strings.ToLower(g)
	return strings.Join(strings.FieldsFunc(g, unicode.IsSpace), " ")
}

// NewGenreSet builds a set from raw tags, dropping empty and placeholder values.
// A comma inside a tag separates two genres, so the set survives a
// round trip through its String form.
func NewGenreSet(tags ...string) GenreSet {
	set := make(GenreSet, len(tags))
	for _, tag := range tags {
		for _, part := range strings.Split(tag, ",") {
			g := NormalizeGenre(part)
			if g == "" || placeholderGenres[g] {
				continue
			}
			set[g] = struct{}{}
		}
	}
	return set
}

// ParseGenres splits a comma-joined genre string ("Drama, Crime")
func ParseGenres(raw string) GenreSet {
	return NewGenreSet(raw)
}

// Has reports whether the set contains the tag (raw or normalized)
func (s GenreSet) Has(tag string) bool {
	_, ok := s[NormalizeGenre(tag)]
	return ok
}

// Sorted returns the tags in ascending order
func (s GenreSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for g := range s {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// String joins the sorted tags the way the ingestion source stores them
func (s GenreSet) String() string {
	return strings.Join(s.Sorted(), ", ")
}
