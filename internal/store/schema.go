package store

import "fmt"

// Derived tables. Publish rebuilds them under a staging name and swaps them in.
const (
	scoresTable          = "movie_scores"
	recommendationsTable = "recommendations"
	stagingSuffix        = "_next"
)

// Schema v1 - Inputs from ingestion plus the derived tables
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Movies handed over by ingestion (identity fields are never changed by a run)
CREATE TABLE IF NOT EXISTS movies (
  movie_id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  genre TEXT NOT NULL DEFAULT '',
  rating REAL,
  votes INTEGER NOT NULL DEFAULT 0 CHECK (votes >= 0),
  url TEXT NOT NULL DEFAULT '',
  imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Reviews handed over by ingestion; sentiment_label is set by the labeler
CREATE TABLE IF NOT EXISTS reviews (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  movie_id TEXT NOT NULL,
  review_text TEXT NOT NULL CHECK (length(review_text) > 0),
  text_key TEXT NOT NULL,
  sentiment_label INTEGER CHECK (sentiment_label IS NULL OR sentiment_label IN (0, 1)),
  labeled_at DATETIME,
  UNIQUE (movie_id, text_key)
);

CREATE INDEX IF NOT EXISTS idx_reviews_movie_id ON reviews(movie_id);

-- One row per successful engine run
CREATE TABLE IF NOT EXISTS publish_runs (
  run_id TEXT PRIMARY KEY,
  published_at DATETIME NOT NULL,
  movies INTEGER NOT NULL,
  scored_movies INTEGER NOT NULL,
  recommendation_edges INTEGER NOT NULL,
  duration_ms INTEGER NOT NULL DEFAULT 0
);
`

// Schema v2 - Read-path indexes
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_reviews_unlabeled ON reviews(id) WHERE sentiment_label IS NULL;
CREATE INDEX IF NOT EXISTS idx_movies_title ON movies(title COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_publish_runs_published_at ON publish_runs(published_at);
`

// Schema v3 - Reviews carry the ingestion's own review id when it has one.
// Reviews with a source id are unique per (movie_id, source_review_id); reviews
// without one fall back to (movie_id, text_key).
const schemaV3 = `
CREATE TABLE reviews_v3 (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  movie_id TEXT NOT NULL,
  source_review_id TEXT,
  review_text TEXT NOT NULL CHECK (length(review_text) > 0),
  text_key TEXT NOT NULL,
  sentiment_label INTEGER CHECK (sentiment_label IS NULL OR sentiment_label IN (0, 1)),
  labeled_at DATETIME
);

INSERT INTO reviews_v3 (id, movie_id, review_text, text_key, sentiment_label, labeled_at)
SELECT id, movie_id, review_text, text_key, sentiment_label, labeled_at FROM reviews;

DROP TABLE reviews;
ALTER TABLE reviews_v3 RENAME TO reviews;

CREATE INDEX idx_reviews_movie_id ON reviews(movie_id);
CREATE INDEX idx_reviews_unlabeled ON reviews(id) WHERE sentiment_label IS NULL;
CREATE UNIQUE INDEX idx_reviews_source_id ON reviews(movie_id, source_review_id)
  WHERE source_review_id IS NOT NULL;
CREATE UNIQUE INDEX idx_reviews_text_key ON reviews(movie_id, text_key)
  WHERE source_review_id IS NULL;
`

// scoresDDL creates the scores table under the given name
func scoresDDL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  movie_id TEXT PRIMARY KEY,
  review_count INTEGER NOT NULL DEFAULT 0,
  sentiment_score REAL CHECK (sentiment_score IS NULL OR (sentiment_score >= 0 AND sentiment_score <= 1)),
  underrated_score REAL,
  provisional_score REAL
)`, table)
}

// recommendationsDDL creates the recommendations table under the given name
func recommendationsDDL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  movie_id TEXT NOT NULL,
  recommended_movie_id TEXT NOT NULL,
  similarity_score REAL NOT NULL CHECK (similarity_score >= 0 AND similarity_score <= 1),
  rank INTEGER NOT NULL CHECK (rank >= 1),
  PRIMARY KEY (movie_id, recommended_movie_id),
  CHECK (movie_id <> recommended_movie_id)
)`, table)
}

// derivedIndexes are created after every swap; DROP TABLE removes the previous ones
var derivedIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_movie_scores_underrated ON movie_scores(underrated_score DESC, movie_id)`,
	`CREATE INDEX IF NOT EXISTS idx_movie_scores_provisional ON movie_scores(provisional_score DESC, movie_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_recommendations_rank ON recommendations(movie_id, rank)`,
}
