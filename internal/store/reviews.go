package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

// LabelUpdate assigns a sentiment label to a stored review
type LabelUpdate struct {
	ReviewID int64
	Label    catalog.Label
}

// InsertReviewBatch inserts reviews in a single transaction.
// A review is skipped when its movie already has a review with the same source id,
// or, for reviews without a source id, the same text. Importing the same file twice
// is a no-op. Returns the number of rows inserted.
func (s *Store) InsertReviewBatch(reviews []*catalog.Review) (int, error) {
	if len(reviews) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO reviews (movie_id, source_review_id, review_text, text_key)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range reviews {
		var sourceID sql.NullString
		if r.SourceID != "" {
			sourceID = sql.NullString{String: r.SourceID, Valid: true}
		}
		res, err := stmt.Exec(r.MovieID, sourceID, r.Text, util.TextKey(r.Text))
		if err != nil {
			return 0, fmt.Errorf("failed to insert review for %s: %w", r.MovieID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// GetUnlabeledReviews returns reviews that have no sentiment label yet
func (s *Store) GetUnlabeledReviews() ([]*catalog.Review, error) {
	return queryReviews(s.db, `WHERE sentiment_label IS NULL`)
}

// UpdateReviewLabels stores classifier labels in a single transaction
func (s *Store) UpdateReviewLabels(updates []LabelUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE reviews SET sentiment_label = ?, labeled_at = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, u := range updates {
		if _, err := stmt.Exec(int(u.Label), now, u.ReviewID); err != nil {
			return fmt.Errorf("failed to update label for review %d: %w", u.ReviewID, err)
		}
	}

	return tx.Commit()
}

// ClearReviewLabels removes all labels so the next label run reclassifies every review
func (s *Store) ClearReviewLabels() error {
	_, err := s.db.Exec(`UPDATE reviews SET sentiment_label = NULL, labeled_at = NULL`)
	return err
}

// ReviewCounts holds review totals
type ReviewCounts struct {
	Total    int
	Labeled  int
	Positive int
	Movies   int // distinct movies with at least one review
}

// CountReviews returns review totals
func (s *Store) CountReviews() (*ReviewCounts, error) {
	var c ReviewCounts
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(sentiment_label),
		       COALESCE(SUM(sentiment_label), 0),
		       COUNT(DISTINCT movie_id)
		FROM reviews
	`).Scan(&c.Total, &c.Labeled, &c.Positive, &c.Movies)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func queryReviews(q querier, where string) ([]*catalog.Review, error) {
	rows, err := q.Query(`
		SELECT id, movie_id, COALESCE(source_review_id, ''), review_text, sentiment_label
		FROM reviews ` + where + `
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*catalog.Review
	for rows.Next() {
		var r catalog.Review
		var label sql.NullInt64
		if err := rows.Scan(&r.ID, &r.MovieID, &r.SourceID, &r.Text, &label); err != nil {
			return nil, err
		}
		if label.Valid {
			r.Sentiment = catalog.LabelOf(catalog.Label(label.Int64))
		}
		reviews = append(reviews, &r)
	}

	return reviews, rows.Err()
}
