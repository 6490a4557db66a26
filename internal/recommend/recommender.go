package recommend

import (
	"context"
	"sort"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/report"
	"github.com/franz/hidden-gems/internal/util"
)

const (
	// DefaultTopN is the number of recommendations kept per movie
	DefaultTopN = 10

	// DefaultScalingLimit is the catalog size above which a run warns about its
	// quadratic cost
	DefaultScalingLimit = 5000
)

// Recommender computes top-N genre recommendations for every movie
type Recommender struct {
	topN         int
	concurrency  int
	scalingLimit int
	runID        string
	logger       *report.EventLogger
}

// Config holds recommender configuration
type Config struct {
	TopN         int
	Concurrency  int
	ScalingLimit int
	RunID        string
	Logger       *report.EventLogger
}

// New creates a new Recommender
func New(cfg *Config) *Recommender {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ScalingLimit <= 0 {
		cfg.ScalingLimit = DefaultScalingLimit
	}

	return &Recommender{
		topN:         cfg.TopN,
		concurrency:  cfg.Concurrency,
		scalingLimit: cfg.ScalingLimit,
		runID:        cfg.RunID,
		logger:       cfg.Logger,
	}
}

// Result represents recommendation results
type Result struct {
	Edges    []catalog.RecommendationEdge
	Sources  int // movies that received recommendations
	Skipped  int // movies without genres
	Duration time.Duration
}

// Recommend returns up to topN edges per movie that has at least one genre.
// Every other movie is a candidate; edges are ordered by similarity descending,
// then by candidate movie_id ascending, and ranked from 1. The output does not
// depend on input order.
func (r *Recommender) Recommend(ctx context.Context, movies []*catalog.Movie) (*Result, error) {
	start := time.Now()

	if len(movies) > r.scalingLimit {
		util.WarnLog("Catalog has %d movies (soft limit %d); recommendations compare every pair and may be slow",
			len(movies), r.scalingLimit)
	}

	sorted := make([]*catalog.Movie, len(movies))
	copy(sorted, movies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MovieID < sorted[j].MovieID
	})

	indexes := make([]int, len(sorted))
	for i := range indexes {
		indexes[i] = i
	}

	mapper := iter.Mapper[int, []catalog.RecommendationEdge]{MaxGoroutines: r.concurrency}
	lists := mapper.Map(indexes, func(i *int) []catalog.RecommendationEdge {
		if ctx.Err() != nil {
			return nil
		}
		return topN(sorted, *i, r.topN)
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{}
	for i, list := range lists {
		if len(sorted[i].Genres) == 0 {
			result.Skipped++
			continue
		}
		if len(list) > 0 {
			result.Sources++
		}
		result.Edges = append(result.Edges, list...)
	}
	result.Duration = time.Since(start)

	util.DebugLog("Recommended %d edges for %d movies (%d without genres) in %v",
		len(result.Edges), result.Sources, result.Skipped, result.Duration)
	r.logger.LogRecommend(r.runID, result.Sources, len(result.Edges), result.Duration)

	return result, nil
}

type candidate struct {
	movieID    string
	similarity float64
}

// before reports whether a ranks ahead of b
func (a candidate) before(b candidate) bool {
	if a.similarity != b.similarity {
		return a.similarity > b.similarity
	}
	return a.movieID < b.movieID
}

// topN ranks every movie other than movies[source] against it
func topN(movies []*catalog.Movie, source, n int) []catalog.RecommendationEdge {
	self := movies[source]
	if len(self.Genres) == 0 {
		return nil
	}

	// best is kept sorted; each candidate is inserted in place
	best := make([]candidate, 0, n+1)
	for j, other := range movies {
		if j == source || other.MovieID == self.MovieID {
			continue
		}

		c := candidate{movieID: other.MovieID, similarity: Jaccard(self.Genres, other.Genres)}
		if len(best) == n && !c.before(best[n-1]) {
			continue
		}

		pos := sort.Search(len(best), func(k int) bool { return c.before(best[k]) })
		best = append(best, candidate{})
		copy(best[pos+1:], best[pos:])
		best[pos] = c
		if len(best) > n {
			best = best[:n]
		}
	}

	edges := make([]catalog.RecommendationEdge, len(best))
	for k, c := range best {
		edges[k] = catalog.RecommendationEdge{
			MovieID:            self.MovieID,
			RecommendedMovieID: c.movieID,
			Similarity:         c.similarity,
			Rank:               k + 1,
		}
	}
	return edges
}
