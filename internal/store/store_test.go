package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/score"
	"github.com/franz/hidden-gems/internal/util"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, path
}

func testMovies() []*catalog.Movie {
	return []*catalog.Movie{
		{MovieID: "tt0000001", Title: "Alpha", Genres: catalog.NewGenreSet("Drama", "Crime"), Rating: catalog.Some(9.0), Votes: 0, URL: "https://example.com/tt0000001"},
		{MovieID: "tt0000002", Title: "Beta", Genres: catalog.NewGenreSet("Drama", "Thriller"), Rating: catalog.Some(7.5), Votes: 1200},
		{MovieID: "tt0000003", Title: "Gamma"},
	}
}

func TestStoreOpenAndMigrate(t *testing.T) {
	store, _ := openTestStore(t)

	version, err := store.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	tables := []string{"schema_version", "movies", "reviews", "publish_runs", "movie_scores", "recommendations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	indexes := []string{
		"idx_reviews_unlabeled",
		"idx_movies_title",
		"idx_movie_scores_underrated",
		"idx_recommendations_rank",
	}
	for _, index := range indexes {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("expected index %s to exist", index)
		}
	}
}

func TestStoreReopenIsIdempotent(t *testing.T) {
	store, path := openTestStore(t)
	store.Close()

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	version, err := reopened.SchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d after reopen, got %d", currentSchemaVersion, version)
	}
}

func TestMovieUpsertAndGet(t *testing.T) {
	store, _ := openTestStore(t)

	if err := store.UpsertMovieBatch(testMovies()); err != nil {
		t.Fatalf("failed to upsert movies: %v", err)
	}

	m, err := store.GetMovie("tt0000001")
	if err != nil {
		t.Fatalf("failed to get movie: %v", err)
	}
	if m == nil {
		t.Fatal("expected movie, got nil")
	}
	if m.Title != "Alpha" || m.Votes != 0 || m.URL != "https://example.com/tt0000001" {
		t.Errorf("unexpected movie: %+v", m)
	}
	if !m.Genres.Has("drama") || !m.Genres.Has("crime") || len(m.Genres) != 2 {
		t.Errorf("expected genres {crime, drama}, got %v", m.Genres.Sorted())
	}
	if r, ok := m.Rating.Get(); !ok || r != 9.0 {
		t.Errorf("expected rating 9.0, got %v", m.Rating)
	}
	if m.UnderratedScore.Valid || m.SentimentScore.Valid {
		t.Error("expected no scores before a publish")
	}

	absent, err := store.GetMovie("tt0000003")
	if err != nil {
		t.Fatalf("failed to get movie: %v", err)
	}
	if absent.Rating.Valid {
		t.Errorf("expected absent rating, got %v", absent.Rating)
	}

	missing, err := store.GetMovie("tt9999999")
	if err != nil || missing != nil {
		t.Errorf("expected nil movie for unknown id, got %+v, %v", missing, err)
	}

	// Re-import replaces identity fields
	updated := &catalog.Movie{MovieID: "tt0000001", Title: "Alpha (Director's Cut)", Rating: catalog.Some(8.8), Votes: 15}
	if err := store.UpsertMovieBatch([]*catalog.Movie{updated}); err != nil {
		t.Fatalf("failed to upsert movie: %v", err)
	}
	m, _ = store.GetMovie("tt0000001")
	if m.Title != "Alpha (Director's Cut)" || m.Votes != 15 {
		t.Errorf("expected updated movie, got %+v", m)
	}

	count, err := store.CountMovies()
	if err != nil || count != 3 {
		t.Errorf("expected 3 movies, got %d (%v)", count, err)
	}
}

func TestFindMovies(t *testing.T) {
	store, _ := openTestStore(t)
	store.UpsertMovieBatch(testMovies())

	tests := []struct {
		query string
		want  []string
	}{
		{"tt0000002", []string{"tt0000002"}},
		{"alp", []string{"tt0000001"}},
		{"A", []string{"tt0000001", "tt0000002", "tt0000003"}},
		{"nothing", nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			movies, err := store.FindMovies(tt.query, 10)
			if err != nil {
				t.Fatalf("FindMovies failed: %v", err)
			}
			if len(movies) != len(tt.want) {
				t.Fatalf("expected %d movies, got %d", len(tt.want), len(movies))
			}
			for i, m := range movies {
				if m.MovieID != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], m.MovieID)
				}
			}
		})
	}
}

func TestReviewInsertDeduplicates(t *testing.T) {
	store, _ := openTestStore(t)

	reviews := []*catalog.Review{
		{MovieID: "tt0000001", Text: "A quiet masterpiece."},
		{MovieID: "tt0000001", Text: "A quiet masterpiece."},
		{MovieID: "tt0000002", Text: "A quiet masterpiece."},
		{MovieID: "tt0000002", Text: "Too long."},
	}

	inserted, err := store.InsertReviewBatch(reviews)
	if err != nil {
		t.Fatalf("failed to insert reviews: %v", err)
	}
	if inserted != 3 {
		t.Errorf("expected 3 inserted reviews, got %d", inserted)
	}

	// Importing the same batch again is a no-op
	inserted, err = store.InsertReviewBatch(reviews)
	if err != nil {
		t.Fatalf("failed to re-insert reviews: %v", err)
	}
	if inserted != 0 {
		t.Errorf("expected 0 inserted reviews on re-import, got %d", inserted)
	}

	counts, err := store.CountReviews()
	if err != nil {
		t.Fatalf("failed to count reviews: %v", err)
	}
	if counts.Total != 3 || counts.Movies != 2 || counts.Labeled != 0 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestInsertReviewBatch_SourceIDs(t *testing.T) {
	store, _ := openTestStore(t)

	reviews := []*catalog.Review{
		// Same text from two reviewers
		{MovieID: "tt0000001", SourceID: "r1", Text: "Great film."},
		{MovieID: "tt0000001", SourceID: "r2", Text: "Great film."},
		// Same source id seen twice
		{MovieID: "tt0000001", SourceID: "r3", Text: "Slow start."},
		{MovieID: "tt0000001", SourceID: "r3", Text: "Slow start, edited."},
		// No source id falls back to text dedup
		{MovieID: "tt0000002", Text: "Too long."},
		{MovieID: "tt0000002", Text: "  Too long. "},
		// A source id does not collide with an id-less review of the same text
		{MovieID: "tt0000002", SourceID: "r9", Text: "Too long."},
	}

	inserted, err := store.InsertReviewBatch(reviews)
	if err != nil {
		t.Fatalf("failed to insert reviews: %v", err)
	}
	if inserted != 5 {
		t.Errorf("expected 5 inserted reviews, got %d", inserted)
	}

	snap, err := store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	var got []string
	for _, r := range snap.Reviews {
		got = append(got, fmt.Sprintf("%s/%s/%s", r.MovieID, r.SourceID, r.Text))
	}
	want := []string{
		"tt0000001/r1/Great film.",
		"tt0000001/r2/Great film.",
		"tt0000001/r3/Slow start.",
		"tt0000002//Too long.",
		"tt0000002/r9/Too long.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("stored reviews = %v, expected %v", got, want)
	}
}

func TestMigrateV2Reviews(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open raw database: %v", err)
	}
	statements := []string{schemaV1, schemaV2, `INSERT INTO schema_version (version) VALUES (1), (2)`}
	for _, stmt := range statements {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("failed to build v2 database: %v", err)
		}
	}
	_, err = raw.Exec(`INSERT INTO reviews (movie_id, review_text, text_key, sentiment_label) VALUES (?, ?, ?, 1)`,
		"tt0000001", "Loved it", util.TextKey("Loved it"))
	if err != nil {
		t.Fatalf("failed to insert v2 review: %v", err)
	}
	raw.Close()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	defer store.Close()

	version, err := store.SchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 3 {
		t.Errorf("expected schema version 3, got %d", version)
	}

	snap, err := store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	if len(snap.Reviews) != 1 {
		t.Fatalf("expected 1 review after migration, got %d", len(snap.Reviews))
	}
	r := snap.Reviews[0]
	if r.Text != "Loved it" || r.SourceID != "" || r.Sentiment != catalog.LabelOf(catalog.Positive) {
		t.Errorf("review not carried over: %+v", r)
	}

	// Text dedup still applies to id-less reviews
	inserted, err := store.InsertReviewBatch([]*catalog.Review{
		{MovieID: "tt0000001", Text: "Loved it"},
		{MovieID: "tt0000001", SourceID: "r1", Text: "Loved it"},
	})
	if err != nil {
		t.Fatalf("failed to insert reviews: %v", err)
	}
	if inserted != 1 {
		t.Errorf("expected 1 inserted review, got %d", inserted)
	}
}

func TestReviewLabels(t *testing.T) {
	store, _ := openTestStore(t)

	store.InsertReviewBatch([]*catalog.Review{
		{MovieID: "tt0000001", Text: "Loved it"},
		{MovieID: "tt0000001", Text: "Hated it"},
		{MovieID: "tt0000002", Text: "Fine"},
	})

	unlabeled, err := store.GetUnlabeledReviews()
	if err != nil {
		t.Fatalf("failed to get unlabeled reviews: %v", err)
	}
	if len(unlabeled) != 3 {
		t.Fatalf("expected 3 unlabeled reviews, got %d", len(unlabeled))
	}

	err = store.UpdateReviewLabels([]LabelUpdate{
		{ReviewID: unlabeled[0].ID, Label: catalog.Positive},
		{ReviewID: unlabeled[1].ID, Label: catalog.Negative},
	})
	if err != nil {
		t.Fatalf("failed to update labels: %v", err)
	}

	unlabeled, _ = store.GetUnlabeledReviews()
	if len(unlabeled) != 1 || unlabeled[0].Text != "Fine" {
		t.Errorf("expected only 'Fine' unlabeled, got %d reviews", len(unlabeled))
	}

	snap, err := store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	all := snap.Reviews
	if !all[0].Sentiment.Valid || all[0].Sentiment.Label != catalog.Positive {
		t.Errorf("expected first review positive, got %+v", all[0].Sentiment)
	}
	if !all[1].Sentiment.Valid || all[1].Sentiment.Label != catalog.Negative {
		t.Errorf("expected second review negative, got %+v", all[1].Sentiment)
	}
	if all[2].Sentiment.Valid {
		t.Errorf("expected third review unlabeled, got %+v", all[2].Sentiment)
	}

	counts, _ := store.CountReviews()
	if counts.Labeled != 2 || counts.Positive != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}

	if err := store.ClearReviewLabels(); err != nil {
		t.Fatalf("failed to clear labels: %v", err)
	}
	unlabeled, _ = store.GetUnlabeledReviews()
	if len(unlabeled) != 3 {
		t.Errorf("expected 3 unlabeled reviews after clear, got %d", len(unlabeled))
	}
}

func TestLoadSnapshot(t *testing.T) {
	store, _ := openTestStore(t)
	store.UpsertMovieBatch(testMovies())
	store.InsertReviewBatch([]*catalog.Review{{MovieID: "tt0000001", Text: "Loved it"}})

	snap, err := store.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}
	if len(snap.Movies) != 3 || len(snap.Reviews) != 1 {
		t.Fatalf("expected 3 movies and 1 review, got %d and %d", len(snap.Movies), len(snap.Reviews))
	}
	for i := 1; i < len(snap.Movies); i++ {
		if snap.Movies[i-1].MovieID >= snap.Movies[i].MovieID {
			t.Errorf("snapshot movies not ordered by movie_id")
		}
	}
}

func scoredPublication(runID string) *Publication {
	movies := testMovies()
	movies[0].ReviewCount = 5
	movies[0].SentimentScore = catalog.Some(0.8)
	movies[0].UnderratedScore = catalog.Some(7.2)
	movies[1].ProvisionalScore = catalog.Some(1.05)

	return &Publication{
		RunID:  runID,
		Movies: movies,
		Edges: []catalog.RecommendationEdge{
			{MovieID: "tt0000001", RecommendedMovieID: "tt0000002", Similarity: 1.0 / 3.0, Rank: 1},
			{MovieID: "tt0000002", RecommendedMovieID: "tt0000001", Similarity: 1.0 / 3.0, Rank: 1},
		},
	}
}

func TestPublishAndRead(t *testing.T) {
	store, _ := openTestStore(t)
	store.UpsertMovieBatch(testMovies())

	result, err := store.Publish(context.Background(), scoredPublication("run-1"))
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if result.ScoreRows != 3 || result.ScoredMovies != 1 || result.EdgeRows != 2 {
		t.Errorf("unexpected publish result: %+v", result)
	}

	m, _ := store.GetMovie("tt0000001")
	if v, ok := m.UnderratedScore.Get(); !ok || v != 7.2 {
		t.Errorf("expected underrated score 7.2, got %v", m.UnderratedScore)
	}
	if m.ReviewCount != 5 {
		t.Errorf("expected review count 5, got %d", m.ReviewCount)
	}

	gems, err := store.TopHiddenGems(score.WithSentiment, 10)
	if err != nil {
		t.Fatalf("TopHiddenGems failed: %v", err)
	}
	if len(gems) != 1 || gems[0].MovieID != "tt0000001" {
		t.Errorf("expected only tt0000001 ranked, got %d movies", len(gems))
	}

	provisional, err := store.TopHiddenGems(score.Provisional, 10)
	if err != nil {
		t.Fatalf("TopHiddenGems failed: %v", err)
	}
	if len(provisional) != 1 || provisional[0].MovieID != "tt0000002" {
		t.Errorf("expected only tt0000002 in provisional ranking, got %d movies", len(provisional))
	}

	if _, err := store.TopHiddenGems(score.Mode(7), 10); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown mode, got %v", err)
	}

	recs, err := store.GetRecommendations("tt0000001")
	if err != nil {
		t.Fatalf("GetRecommendations failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Movie.Title != "Beta" || recs[0].Edge.Rank != 1 {
		t.Errorf("unexpected recommendations: %+v", recs)
	}

	run, err := store.GetLatestRun()
	if err != nil {
		t.Fatalf("GetLatestRun failed: %v", err)
	}
	if run == nil || run.RunID != "run-1" || run.Movies != 3 || run.RecommendationEdges != 2 {
		t.Errorf("unexpected run: %+v", run)
	}
}

func TestTopHiddenGemsMatchesScoreRank(t *testing.T) {
	store, _ := openTestStore(t)

	// Ties, absent scores and unsorted ids in both modes
	movies := []*catalog.Movie{
		{MovieID: "tt0000005", Title: "E", UnderratedScore: catalog.Some(2.5), ProvisionalScore: catalog.Some(1.5)},
		{MovieID: "tt0000002", Title: "B", UnderratedScore: catalog.Some(4.0)},
		{MovieID: "tt0000004", Title: "D", UnderratedScore: catalog.Some(2.5), ProvisionalScore: catalog.Some(1.5)},
		{MovieID: "tt0000001", Title: "A", ProvisionalScore: catalog.Some(3.0)},
		{MovieID: "tt0000003", Title: "C"},
		{MovieID: "tt0000006", Title: "F", UnderratedScore: catalog.Some(0.1), ProvisionalScore: catalog.Some(1.5)},
	}
	if err := store.UpsertMovieBatch(movies); err != nil {
		t.Fatalf("failed to upsert movies: %v", err)
	}
	if _, err := store.Publish(context.Background(), &Publication{RunID: "run-1", Movies: movies}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	scored, err := store.GetScoredMovies()
	if err != nil {
		t.Fatalf("GetScoredMovies failed: %v", err)
	}

	ids := func(ms []*catalog.Movie) []string {
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = m.MovieID
		}
		return out
	}

	for _, mode := range []score.Mode{score.WithSentiment, score.Provisional} {
		t.Run(mode.String(), func(t *testing.T) {
			fromSQL, err := store.TopHiddenGems(mode, len(movies))
			if err != nil {
				t.Fatalf("TopHiddenGems failed: %v", err)
			}
			fromGo := score.Rank(scored, mode)

			if !reflect.DeepEqual(ids(fromSQL), ids(fromGo)) {
				t.Errorf("rankings disagree: sql %v, score.Rank %v", ids(fromSQL), ids(fromGo))
			}
		})
	}
}

// dumpTable returns every row of table as text, in primary key order
func dumpTable(t *testing.T, store *Store, table, orderBy string) []string {
	t.Helper()

	rows, err := store.DB().Query(`SELECT * FROM ` + table + ` ORDER BY ` + orderBy)
	if err != nil {
		t.Fatalf("failed to read %s: %v", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		t.Fatalf("failed to read columns of %s: %v", table, err)
	}

	var out []string
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			t.Fatalf("failed to scan %s: %v", table, err)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, strings.Join(cells, "|"))
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("failed to iterate %s: %v", table, err)
	}
	return out
}

func TestPublishedRowsDoNotDependOnRunID(t *testing.T) {
	store, _ := openTestStore(t)
	store.UpsertMovieBatch(testMovies())
	ctx := context.Background()

	if _, err := store.Publish(ctx, scoredPublication("run-1")); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}
	scores := dumpTable(t, store, "movie_scores", "movie_id")
	edges := dumpTable(t, store, "recommendations", "movie_id, recommended_movie_id")

	if _, err := store.Publish(ctx, scoredPublication("run-2")); err != nil {
		t.Fatalf("second publish failed: %v", err)
	}

	if got := dumpTable(t, store, "movie_scores", "movie_id"); !reflect.DeepEqual(got, scores) {
		t.Errorf("movie_scores changed between runs:\n%v\n%v", scores, got)
	}
	if got := dumpTable(t, store, "recommendations", "movie_id, recommended_movie_id"); !reflect.DeepEqual(got, edges) {
		t.Errorf("recommendations changed between runs:\n%v\n%v", edges, got)
	}
	for _, row := range append(scores, edges...) {
		if strings.Contains(row, "run-1") {
			t.Errorf("published row carries the run id: %s", row)
		}
	}
}

func TestPublishReplacesPreviousRun(t *testing.T) {
	store, _ := openTestStore(t)
	store.UpsertMovieBatch(testMovies())
	ctx := context.Background()

	if _, err := store.Publish(ctx, scoredPublication("run-1")); err != nil {
		t.Fatalf("first publish failed: %v", err)
	}

	second := &Publication{RunID: "run-2", Movies: testMovies()}
	if _, err := store.Publish(ctx, second); err != nil {
		t.Fatalf("second publish failed: %v", err)
	}

	edges, err := store.GetAllEdges()
	if err != nil {
		t.Fatalf("GetAllEdges failed: %v", err)
	}
	if len(edges) != 0 {
		t.Errorf("expected previous edges to be replaced, got %d", len(edges))
	}

	gems, _ := store.TopHiddenGems(score.WithSentiment, 10)
	if len(gems) != 0 {
		t.Errorf("expected no scored movies after second publish, got %d", len(gems))
	}

	run, _ := store.GetLatestRun()
	if run == nil || run.RunID != "run-2" {
		t.Errorf("expected latest run 'run-2', got %+v", run)
	}
}

func TestPublishFailureKeepsPreviousOutput(t *testing.T) {
	tests := []struct {
		name  string
		edges []catalog.RecommendationEdge
	}{
		{
			name: "self edge",
			edges: []catalog.RecommendationEdge{
				{MovieID: "tt0000001", RecommendedMovieID: "tt0000001", Similarity: 1, Rank: 1},
			},
		},
		{
			name: "duplicate edge",
			edges: []catalog.RecommendationEdge{
				{MovieID: "tt0000001", RecommendedMovieID: "tt0000002", Similarity: 0.5, Rank: 1},
				{MovieID: "tt0000001", RecommendedMovieID: "tt0000002", Similarity: 0.5, Rank: 2},
			},
		},
		{
			name: "similarity out of range",
			edges: []catalog.RecommendationEdge{
				{MovieID: "tt0000001", RecommendedMovieID: "tt0000002", Similarity: 1.5, Rank: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := openTestStore(t)
			store.UpsertMovieBatch(testMovies())
			ctx := context.Background()

			if _, err := store.Publish(ctx, scoredPublication("run-1")); err != nil {
				t.Fatalf("first publish failed: %v", err)
			}
			before, _ := store.GetAllEdges()

			bad := &Publication{RunID: "run-2", Movies: testMovies(), Edges: tt.edges}
			_, err := store.Publish(ctx, bad)
			if err == nil {
				t.Fatal("expected publish to fail")
			}
			if !errors.Is(err, util.ErrPublish) {
				t.Errorf("expected ErrPublish, got %v", err)
			}

			after, _ := store.GetAllEdges()
			if len(after) != len(before) {
				t.Errorf("expected %d edges after failed publish, got %d", len(before), len(after))
			}
			m, _ := store.GetMovie("tt0000001")
			if v, ok := m.UnderratedScore.Get(); !ok || v != 7.2 {
				t.Errorf("expected previous score to survive, got %v", m.UnderratedScore)
			}
			run, _ := store.GetLatestRun()
			if run == nil || run.RunID != "run-1" {
				t.Errorf("expected latest run 'run-1', got %+v", run)
			}

			var staging int
			store.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name LIKE '%_next'`).Scan(&staging)
			if staging != 0 {
				t.Errorf("expected no staging tables after rollback, got %d", staging)
			}
		})
	}
}

func TestPublishCancelledContext(t *testing.T) {
	store, _ := openTestStore(t)
	store.UpsertMovieBatch(testMovies())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Publish(ctx, scoredPublication("run-1"))
	if !errors.Is(err, util.ErrPublish) {
		t.Errorf("expected ErrPublish for cancelled context, got %v", err)
	}

	run, _ := store.GetLatestRun()
	if run != nil {
		t.Errorf("expected no run recorded, got %+v", run)
	}
}

func TestOpenReadOnly(t *testing.T) {
	store, path := openTestStore(t)
	store.UpsertMovieBatch(testMovies())
	store.Close()

	ro, err := OpenWithOptions(path, &OpenOptions{ReadOnly: true})
	if err != nil {
		t.Fatalf("failed to open read-only: %v", err)
	}
	defer ro.Close()

	count, err := ro.CountMovies()
	if err != nil || count != 3 {
		t.Errorf("expected 3 movies, got %d (%v)", count, err)
	}

	if err := ro.UpsertMovieBatch(testMovies()[:1]); err == nil {
		t.Error("expected write to fail on read-only store")
	}
}

func TestCheckIntegrity(t *testing.T) {
	store, _ := openTestStore(t)

	if err := store.CheckIntegrity(); err != nil {
		t.Errorf("expected fresh database to pass integrity check: %v", err)
	}
	if SQLiteVersion() == "" {
		t.Error("expected SQLite version")
	}
}
