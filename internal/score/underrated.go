// Package score computes the underrated score that ranks hidden gems: a high rating
// and positive reviews that few people have voted on.
package score

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

// Mode selects the underrated formula
type Mode int

const (
	// WithSentiment is (sentiment * rating) / (ln(1+votes) + 1)
	WithSentiment Mode = iota

	// Provisional is rating / ln(1+votes), used before any review is labeled
	Provisional
)

func (m Mode) String() string {
	switch m {
	case WithSentiment:
		return "with-sentiment"
	case Provisional:
		return "provisional"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a mode name to a Mode
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "with-sentiment", "sentiment", "underrated":
		return WithSentiment, nil
	case "provisional":
		return Provisional, nil
	}
	return WithSentiment, fmt.Errorf("%w: unknown score mode %q", util.ErrInvalidConfig, name)
}

// Underrated returns (sentiment * rating) / (ln(1+votes) + 1).
// The result is absent when sentiment or rating is absent. Zero votes gives a
// denominator of 1.
func Underrated(sentiment, rating catalog.NullFloat, votes int64) (catalog.NullFloat, error) {
	if votes < 0 {
		return catalog.None(), fmt.Errorf("%w: negative vote count %d", util.ErrMalformedInput, votes)
	}

	s, ok := sentiment.Get()
	if !ok {
		return catalog.None(), nil
	}
	r, ok := rating.Get()
	if !ok {
		return catalog.None(), nil
	}

	return catalog.Some((s * r) / (math.Log1p(float64(votes)) + 1)), nil
}

// ProvisionalScore returns rating / ln(1+votes).
// The result is absent when rating is absent or votes is 0, where the
// denominator vanishes.
func ProvisionalScore(rating catalog.NullFloat, votes int64) (catalog.NullFloat, error) {
	if votes < 0 {
		return catalog.None(), fmt.Errorf("%w: negative vote count %d", util.ErrMalformedInput, votes)
	}

	r, ok := rating.Get()
	if !ok || votes == 0 {
		return catalog.None(), nil
	}

	return catalog.Some(r / math.Log1p(float64(votes))), nil
}

// Calculator computes one of the underrated formulas for a movie
type Calculator struct {
	Mode Mode
}

// Score evaluates the calculator's formula for m
func (c Calculator) Score(m *catalog.Movie) (catalog.NullFloat, error) {
	switch c.Mode {
	case WithSentiment:
		return Underrated(m.SentimentScore, m.Rating, m.Votes)
	case Provisional:
		return ProvisionalScore(m.Rating, m.Votes)
	}
	return catalog.None(), fmt.Errorf("%w: unknown score mode %d", util.ErrInvalidConfig, int(c.Mode))
}

// Value returns the score stored on m for the given mode
func Value(m *catalog.Movie, mode Mode) catalog.NullFloat {
	if mode == Provisional {
		return m.ProvisionalScore
	}
	return m.UnderratedScore
}

// Rank returns the movies that have a score for mode, highest first.
// Ties are broken by ascending movie_id; movies without a score are excluded.
func Rank(movies []*catalog.Movie, mode Mode) []*catalog.Movie {
	ranked := make([]*catalog.Movie, 0, len(movies))
	for _, m := range movies {
		if Value(m, mode).Valid {
			ranked = append(ranked, m)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := Value(ranked[i], mode).Float64, Value(ranked[j], mode).Float64
		if a != b {
			return a > b
		}
		return ranked[i].MovieID < ranked[j].MovieID
	})

	return ranked
}
