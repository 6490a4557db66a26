// Package engine runs the scoring and recommendation pipeline over one snapshot of
// the catalog and publishes the result atomically.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/franz/hidden-gems/internal/recommend"
	"github.com/franz/hidden-gems/internal/report"
	"github.com/franz/hidden-gems/internal/score"
	"github.com/franz/hidden-gems/internal/sentiment"
	"github.com/franz/hidden-gems/internal/store"
	"github.com/franz/hidden-gems/internal/util"
)

// Store is the persistence the engine reads its snapshot from and publishes to
type Store interface {
	LoadSnapshot(ctx context.Context) (*store.Snapshot, error)
	Publish(ctx context.Context, pub *store.Publication) (*store.PublishResult, error)
}

// Engine executes runs. It holds no state between runs.
type Engine struct {
	store        Store
	concurrency  int
	topN         int
	scalingLimit int
	logger       *report.EventLogger
}

// Config holds engine configuration
type Config struct {
	Store        Store
	Concurrency  int
	TopN         int
	ScalingLimit int
	Logger       *report.EventLogger
}

// New creates a new Engine
func New(cfg *Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Engine{
		store:        cfg.Store,
		concurrency:  cfg.Concurrency,
		topN:         cfg.TopN,
		scalingLimit: cfg.ScalingLimit,
		logger:       cfg.Logger,
	}
}

// Result represents the outcome of one run
type Result struct {
	RunID            string
	Movies           int
	Reviews          int
	SentimentMovies  int // movies with at least one labeled review
	RejectedReviews  int
	ScoredMovies     int
	ProvisionalScore int
	ScoreErrors      []error
	Edges            int
	RecommendSources int
	Duration         time.Duration
}

// Run reads the catalog, computes sentiment, underrated scores and recommendations,
// and replaces the published tables. Running twice on unchanged inputs publishes
// identical rows.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()

	util.InfoLog("Starting run %s", runID)

	snap, err := e.store.LoadSnapshot(ctx)
	if err != nil {
		e.logger.LogError(report.EventError, "snapshot", err)
		return nil, err
	}

	result := &Result{
		RunID:   runID,
		Movies:  len(snap.Movies),
		Reviews: len(snap.Reviews),
	}
	util.InfoLog("Loaded %d movies and %d reviews", result.Movies, result.Reviews)
	if result.Movies == 0 {
		util.WarnLog("Catalog is empty; publishing empty tables")
	}

	var scored *score.Result
	var recs *recommend.Result

	g, gctx := errgroup.WithContext(ctx)

	// Sentiment and scores
	g.Go(func() error {
		agg := sentiment.Aggregate(snap.Reviews)
		for _, rejected := range agg.Rejected {
			util.DebugLog("Review not counted: %v", rejected)
			e.logger.LogRejected(report.EventAggregate, "", "", rejected)
		}
		result.RejectedReviews = len(agg.Rejected)
		result.SentimentMovies = sentiment.Merge(snap.Movies, agg.Scores)
		for _, m := range snap.Movies {
			m.ReviewCount = agg.Counts[m.MovieID]
		}
		e.logger.LogAggregate(runID, result.SentimentMovies, result.RejectedReviews)

		if err := gctx.Err(); err != nil {
			return err
		}

		scored = score.New(&score.Config{RunID: runID, Logger: e.logger}).Score(snap.Movies)
		return nil
	})

	// Recommendations read only genres, which scoring never touches
	g.Go(func() error {
		r := recommend.New(&recommend.Config{
			TopN:         e.topN,
			Concurrency:  e.concurrency,
			ScalingLimit: e.scalingLimit,
			RunID:        runID,
			Logger:       e.logger,
		})
		var err error
		recs, err = r.Recommend(gctx, snap.Movies)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("run %s aborted: %w", runID, err)
	}

	result.ScoredMovies = scored.Scored
	result.ProvisionalScore = scored.Provisional
	result.ScoreErrors = scored.Errors
	result.Edges = len(recs.Edges)
	result.RecommendSources = recs.Sources

	if result.RejectedReviews > 0 {
		util.WarnLog("%d reviews were not counted (unlabeled or invalid label)", result.RejectedReviews)
	}

	publishStart := time.Now()
	published, err := e.store.Publish(ctx, &store.Publication{
		RunID:    runID,
		Movies:   snap.Movies,
		Edges:    recs.Edges,
		Duration: time.Since(start),
	})
	if err != nil {
		e.logger.LogPublish(runID, 0, 0, time.Since(publishStart), err)
		if !errors.Is(err, util.ErrPublish) {
			err = fmt.Errorf("%w: %w", util.ErrPublish, err)
		}
		return nil, err
	}
	e.logger.LogPublish(runID, published.ScoreRows, published.EdgeRows, time.Since(publishStart), nil)

	result.Duration = time.Since(start)

	util.SuccessLog("Run %s published: %d movies, %d scored, %d recommendation edges in %v",
		runID, published.ScoreRows, published.ScoredMovies, published.EdgeRows, result.Duration.Round(time.Millisecond))

	return result, nil
}
