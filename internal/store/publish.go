package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

// Snapshot is the engine's input: every movie and every review at one point in time
type Snapshot struct {
	Movies  []*catalog.Movie
	Reviews []*catalog.Review
}

// LoadSnapshot reads movies and reviews in one read transaction so both come from
// the same committed state
func (s *Store) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		movies, err := queryMovies(tx)
		if err != nil {
			return err
		}
		reviews, err := queryReviews(tx, ``)
		if err != nil {
			return err
		}
		snap.Movies = movies
		snap.Reviews = reviews
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return snap, nil
}

// Publication is the complete output of one engine run
type Publication struct {
	RunID    string
	Movies   []*catalog.Movie
	Edges    []catalog.RecommendationEdge
	Duration time.Duration
}

// PublishResult reports what was written
type PublishResult struct {
	ScoreRows    int
	ScoredMovies int // rows with an underrated score
	EdgeRows     int
}

// Publish replaces movie_scores and recommendations with the given rows.
// New rows are written to staging tables which are then renamed over the live ones
// inside the same transaction; on any error nothing is committed and readers keep
// seeing the previous run. Publish never retries.
func (s *Store) Publish(ctx context.Context, pub *Publication) (*PublishResult, error) {
	result := &PublishResult{}

	err := s.Transaction(ctx, func(tx *sql.Tx) error {
		scored, err := writeScores(ctx, tx, scoresTable+stagingSuffix, pub)
		if err != nil {
			return err
		}
		edges, err := writeEdges(ctx, tx, recommendationsTable+stagingSuffix, pub)
		if err != nil {
			return err
		}

		if err := swapTable(ctx, tx, scoresTable); err != nil {
			return err
		}
		if err := swapTable(ctx, tx, recommendationsTable); err != nil {
			return err
		}
		for _, stmt := range derivedIndexes {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create index: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO publish_runs (run_id, published_at, movies, scored_movies, recommendation_edges, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)
		`, pub.RunID, time.Now().UTC(), len(pub.Movies), scored, edges, pub.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}

		result.ScoreRows = len(pub.Movies)
		result.ScoredMovies = scored
		result.EdgeRows = edges
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", util.ErrPublish, err)
	}

	return result, nil
}

// writeScores fills a fresh staging scores table; returns rows with an underrated score
func writeScores(ctx context.Context, tx *sql.Tx, table string, pub *Publication) (int, error) {
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, scoresDDL(table)); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+table+` (movie_id, review_count, sentiment_score, underrated_score, provisional_score)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	scored := 0
	for _, m := range pub.Movies {
		_, err := stmt.ExecContext(ctx, m.MovieID, m.ReviewCount,
			m.SentimentScore.Ptr(), m.UnderratedScore.Ptr(), m.ProvisionalScore.Ptr())
		if err != nil {
			return 0, fmt.Errorf("failed to write scores for %s: %w", m.MovieID, err)
		}
		if m.UnderratedScore.Valid {
			scored++
		}
	}
	return scored, nil
}

func writeEdges(ctx context.Context, tx *sql.Tx, table string, pub *Publication) (int, error) {
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, recommendationsDDL(table)); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+table+` (movie_id, recommended_movie_id, similarity_score, rank)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range pub.Edges {
		if _, err := stmt.ExecContext(ctx, e.MovieID, e.RecommendedMovieID, e.Similarity, e.Rank); err != nil {
			return 0, fmt.Errorf("failed to write edge %s -> %s: %w", e.MovieID, e.RecommendedMovieID, err)
		}
	}
	return len(pub.Edges), nil
}

// swapTable replaces table with its staging copy
func swapTable(ctx context.Context, tx *sql.Tx, table string) error {
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
		return fmt.Errorf("failed to drop %s: %w", table, err)
	}
	if _, err := tx.ExecContext(ctx, `ALTER TABLE `+table+stagingSuffix+` RENAME TO `+table); err != nil {
		return fmt.Errorf("failed to rename %s: %w", table+stagingSuffix, err)
	}
	return nil
}
