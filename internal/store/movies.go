package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/franz/hidden-gems/internal/catalog"
)

// movieColumns is the column list shared by every movie query
const movieColumns = `m.movie_id, m.title, m.genre, m.rating, m.votes, m.url`

// UpsertMovieBatch inserts or replaces movies in a single transaction.
// Re-importing the same movie_id replaces its identity fields.
func (s *Store) UpsertMovieBatch(movies []*catalog.Movie) error {
	if len(movies) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO movies (movie_id, title, genre, rating, votes, url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(movie_id) DO UPDATE SET
			title = excluded.title,
			genre = excluded.genre,
			rating = excluded.rating,
			votes = excluded.votes,
			url = excluded.url,
			imported_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range movies {
		if _, err := stmt.Exec(m.MovieID, m.Title, m.Genres.String(), m.Rating.Ptr(), m.Votes, m.URL); err != nil {
			return fmt.Errorf("failed to upsert movie %s: %w", m.MovieID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetMovie returns a movie with its published scores, or nil if it does not exist
func (s *Store) GetMovie(movieID string) (*catalog.Movie, error) {
	rows, err := s.db.Query(`
		SELECT `+movieColumns+`, `+scoreColumns+`
		FROM movies m
		LEFT JOIN movie_scores sc ON sc.movie_id = m.movie_id
		WHERE m.movie_id = ?
	`, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movies, err := scanScoredMovies(rows)
	if err != nil || len(movies) == 0 {
		return nil, err
	}
	return movies[0], nil
}

// FindMovies returns movies whose title contains query (case-insensitive),
// or whose movie_id equals it
func (s *Store) FindMovies(query string, limit int) ([]*catalog.Movie, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	rows, err := s.db.Query(`
		SELECT `+movieColumns+`, `+scoreColumns+`
		FROM movies m
		LEFT JOIN movie_scores sc ON sc.movie_id = m.movie_id
		WHERE m.movie_id = ? OR lower(m.title) LIKE ?
		ORDER BY (m.movie_id = ?) DESC, m.title, m.movie_id
		LIMIT ?
	`, query, pattern, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScoredMovies(rows)
}

// CountMovies returns the number of imported movies
func (s *Store) CountMovies() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM movies`).Scan(&count)
	return count, err
}

func queryMovies(q querier) ([]*catalog.Movie, error) {
	rows, err := q.Query(`SELECT ` + movieColumns + ` FROM movies m ORDER BY m.movie_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	var movies []*catalog.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}

	return movies, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func scanMovie(row scanner, extra ...any) (*catalog.Movie, error) {
	var m catalog.Movie
	var genre string
	var rating sql.NullFloat64

	dest := append([]any{&m.MovieID, &m.Title, &genre, &rating, &m.Votes, &m.URL}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	// Stored genres are already normalized; parsing again is a no-op for them
	m.Genres = catalog.ParseGenres(genre)
	m.Rating = nullFloat(rating)
	return &m, nil
}

func nullFloat(n sql.NullFloat64) catalog.NullFloat {
	if !n.Valid {
		return catalog.None()
	}
	return catalog.Some(n.Float64)
}
