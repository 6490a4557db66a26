// Package sentiment reduces per-review sentiment labels to a per-movie score and
// drives the external classifier that assigns those labels.
package sentiment

import (
	"fmt"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

// Aggregation is the result of reducing review labels
type Aggregation struct {
	// Scores maps movie_id to the mean label. Movies without labeled reviews are absent.
	Scores map[string]float64

	// Counts maps movie_id to the number of labels averaged
	Counts map[string]int

	// Rejected lists reviews that were not counted (unlabeled or non-binary)
	Rejected []error
}

// Aggregate computes the arithmetic mean of the binary labels of each movie's reviews.
// Labels are summed as integers and divided once, so the result does not depend on
// review order.
func Aggregate(reviews []*catalog.Review) *Aggregation {
	positives := make(map[string]int)
	counts := make(map[string]int)
	var rejected []error

	for _, r := range reviews {
		if !r.Sentiment.Valid {
			rejected = append(rejected, fmt.Errorf("%w: review %d of %s has no sentiment label",
				util.ErrMissingData, r.ID, r.MovieID))
			continue
		}
		switch r.Sentiment.Label {
		case catalog.Positive:
			positives[r.MovieID]++
		case catalog.Negative:
		default:
			rejected = append(rejected, fmt.Errorf("%w: review %d of %s has non-binary label %d",
				util.ErrMalformedInput, r.ID, r.MovieID, r.Sentiment.Label))
			continue
		}
		counts[r.MovieID]++
	}

	scores := make(map[string]float64, len(counts))
	for id, n := range counts {
		scores[id] = float64(positives[id]) / float64(n)
	}

	return &Aggregation{
		Scores:   scores,
		Counts:   counts,
		Rejected: rejected,
	}
}

// Merge sets SentimentScore on every movie with left-outer semantics: movies that
// have no entry in scores are left absent (never zero).
// Returns the number of movies that received a score.
func Merge(movies []*catalog.Movie, scores map[string]float64) int {
	merged := 0
	for _, m := range movies {
		if s, ok := scores[m.MovieID]; ok {
			m.SentimentScore = catalog.Some(s)
			merged++
		} else {
			m.SentimentScore = catalog.None()
		}
	}
	return merged
}
