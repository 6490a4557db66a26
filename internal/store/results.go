package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/score"
	"github.com/franz/hidden-gems/internal/util"
)

// scoreColumns are the published columns joined onto movies (sc = movie_scores)
const scoreColumns = `COALESCE(sc.review_count, 0), sc.sentiment_score, sc.underrated_score, sc.provisional_score`

// TopHiddenGems returns the movies that have a score for mode, highest first.
// It applies the same policy as score.Rank in SQL: movies without that score are
// excluded and ties are broken by movie_id.
func (s *Store) TopHiddenGems(mode score.Mode, limit int) ([]*catalog.Movie, error) {
	var column string
	switch mode {
	case score.WithSentiment:
		column = "sc.underrated_score"
	case score.Provisional:
		column = "sc.provisional_score"
	default:
		return nil, fmt.Errorf("%w: unknown score mode %s", util.ErrInvalidConfig, mode)
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT `+movieColumns+`, `+scoreColumns+`
		FROM movie_scores sc
		JOIN movies m ON m.movie_id = sc.movie_id
		WHERE `+column+` IS NOT NULL
		ORDER BY `+column+` DESC, m.movie_id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hidden gems: %w", err)
	}
	defer rows.Close()

	return scanScoredMovies(rows)
}

// GetScoredMovies returns every movie with its published scores, ordered by movie_id
func (s *Store) GetScoredMovies() ([]*catalog.Movie, error) {
	rows, err := s.db.Query(`
		SELECT ` + movieColumns + `, ` + scoreColumns + `
		FROM movies m
		LEFT JOIN movie_scores sc ON sc.movie_id = m.movie_id
		ORDER BY m.movie_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query scored movies: %w", err)
	}
	defer rows.Close()

	return scanScoredMovies(rows)
}

// Recommendation is a published edge together with the recommended movie
type Recommendation struct {
	Edge  catalog.RecommendationEdge
	Movie *catalog.Movie
}

// GetRecommendations returns the published recommendations for a movie in rank order
func (s *Store) GetRecommendations(movieID string) ([]*Recommendation, error) {
	rows, err := s.db.Query(`
		SELECT r.movie_id, r.recommended_movie_id, r.similarity_score, r.rank,
		       `+movieColumns+`, `+scoreColumns+`
		FROM recommendations r
		JOIN movies m ON m.movie_id = r.recommended_movie_id
		LEFT JOIN movie_scores sc ON sc.movie_id = m.movie_id
		WHERE r.movie_id = ?
		ORDER BY r.rank
	`, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*Recommendation
	for rows.Next() {
		var rec Recommendation
		var m catalog.Movie
		var genre string
		var rating, sentiment, underrated, provisional sql.NullFloat64

		err := rows.Scan(
			&rec.Edge.MovieID, &rec.Edge.RecommendedMovieID, &rec.Edge.Similarity, &rec.Edge.Rank,
			&m.MovieID, &m.Title, &genre, &rating, &m.Votes, &m.URL,
			&m.ReviewCount, &sentiment, &underrated, &provisional,
		)
		if err != nil {
			return nil, err
		}
		m.Genres = catalog.ParseGenres(genre)
		m.Rating = nullFloat(rating)
		m.SentimentScore = nullFloat(sentiment)
		m.UnderratedScore = nullFloat(underrated)
		m.ProvisionalScore = nullFloat(provisional)
		rec.Movie = &m
		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// GetAllEdges returns every published edge ordered by movie_id then rank
func (s *Store) GetAllEdges() ([]catalog.RecommendationEdge, error) {
	rows, err := s.db.Query(`
		SELECT movie_id, recommended_movie_id, similarity_score, rank
		FROM recommendations
		ORDER BY movie_id, rank
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var edges []catalog.RecommendationEdge
	for rows.Next() {
		var e catalog.RecommendationEdge
		if err := rows.Scan(&e.MovieID, &e.RecommendedMovieID, &e.Similarity, &e.Rank); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}

	return edges, rows.Err()
}

// Run describes one published engine run
type Run struct {
	RunID               string
	PublishedAt         time.Time
	Movies              int
	ScoredMovies        int
	RecommendationEdges int
	Duration            time.Duration
}

// GetLatestRun returns the most recent published run, or nil if nothing was published
func (s *Store) GetLatestRun() (*Run, error) {
	var r Run
	var durationMs int64

	err := s.db.QueryRow(`
		SELECT run_id, published_at, movies, scored_movies, recommendation_edges, duration_ms
		FROM publish_runs
		ORDER BY published_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&r.RunID, &r.PublishedAt, &r.Movies, &r.ScoredMovies, &r.RecommendationEdges, &durationMs)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.Duration = time.Duration(durationMs) * time.Millisecond
	return &r, nil
}

func scanScoredMovies(rows *sql.Rows) ([]*catalog.Movie, error) {
	var movies []*catalog.Movie
	for rows.Next() {
		var reviewCount int
		var sentiment, underrated, provisional sql.NullFloat64

		m, err := scanMovie(rows, &reviewCount, &sentiment, &underrated, &provisional)
		if err != nil {
			return nil, err
		}
		m.ReviewCount = reviewCount
		m.SentimentScore = nullFloat(sentiment)
		m.UnderratedScore = nullFloat(underrated)
		m.ProvisionalScore = nullFloat(provisional)
		movies = append(movies, m)
	}

	return movies, rows.Err()
}
