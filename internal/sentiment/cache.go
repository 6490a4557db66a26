package sentiment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

// Cache provides database-backed caching of classifier labels keyed by text hash.
// Identical review text is classified once across runs.
type Cache struct {
	db         *sql.DB
	classifier Classifier
	model      string
}

// NewCache creates a new cache in front of classifier.
// model separates labels produced by different classifiers.
func NewCache(db *sql.DB, classifier Classifier, model string) *Cache {
	return &Cache{
		db:         db,
		classifier: classifier,
		model:      model,
	}
}

// EnsureSchema creates the cache table if it doesn't exist
func (c *Cache) EnsureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sentiment_cache (
		text_key TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		label INTEGER NOT NULL CHECK (label IN (0, 1)),
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		hit_count INTEGER DEFAULT 0,
		PRIMARY KEY (text_key, model)
	);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create sentiment_cache table: %w", err)
	}
	return nil
}

// Classify returns the cached label for text, calling the classifier on a miss
func (c *Cache) Classify(ctx context.Context, text string) (catalog.Label, error) {
	key := util.TextKey(text)

	label, ok, err := c.get(key)
	if err != nil {
		util.DebugLog("Sentiment cache lookup failed: %v", err)
	}
	if ok {
		c.incrementHitCount(key)
		return label, nil
	}

	label, err = c.classifier.Classify(ctx, text)
	if err != nil {
		return label, err
	}

	if err := c.put(key, label); err != nil {
		// A cache write failure only costs a repeat request next run
		util.WarnLog("Failed to cache sentiment label: %v", err)
	}
	return label, nil
}

func (c *Cache) get(key string) (catalog.Label, bool, error) {
	var label int
	err := c.db.QueryRow(`
		SELECT label FROM sentiment_cache
		WHERE text_key = ? AND model = ?
	`, key, c.model).Scan(&label)

	if err == sql.ErrNoRows {
		return catalog.Negative, false, nil
	}
	if err != nil {
		return catalog.Negative, false, fmt.Errorf("failed to query cache: %w", err)
	}
	return catalog.Label(label), true, nil
}

func (c *Cache) put(key string, label catalog.Label) error {
	_, err := c.db.Exec(`
		INSERT INTO sentiment_cache (text_key, model, label, cached_at, hit_count)
		VALUES (?, ?, ?, ?, 0)
		ON CONFLICT (text_key, model) DO UPDATE SET label = excluded.label, cached_at = excluded.cached_at
	`, key, c.model, int(label), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

func (c *Cache) incrementHitCount(key string) {
	_, err := c.db.Exec(`UPDATE sentiment_cache SET hit_count = hit_count + 1 WHERE text_key = ? AND model = ?`, key, c.model)
	if err != nil {
		util.DebugLog("Failed to increment hit count: %v", err)
	}
}

// GetStats returns cache statistics
func (c *Cache) GetStats() (entries int, totalHits int64, err error) {
	err = c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(hit_count), 0) FROM sentiment_cache`).Scan(&entries, &totalHits)
	return
}

// ClearCache removes all cached entries
func (c *Cache) ClearCache() error {
	_, err := c.db.Exec("DELETE FROM sentiment_cache")
	return err
}
