// Package recommend builds per-movie lists of genre-similar movies.
package recommend

import "github.com/franz/hidden-gems/internal/catalog"

// Jaccard returns |a ∩ b| / |a ∪ b| for two normalized genre sets.
// It is 0 when either set is empty and 1 for identical non-empty sets.
func Jaccard(a, b catalog.GenreSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}

	intersection := 0
	for g := range small {
		if _, ok := large[g]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
