package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/hidden-gems/internal/report"
	"github.com/franz/hidden-gems/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestImportMoviesAndReviews(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	moviesPath := writeFile(t, "movies.jsonl", `{"movie_id":"tt0000001","title":"Alpha","genre":"Drama, Crime","rating":9.0,"votes":"2.9M","url":"https://example.com/tt0000001"}
{"movie_id":"","title":"No ID","genre":"Drama","rating":7.0,"votes":10}
{"movie_id":"tt0000002","title":"Beta","genre":["Drama","Thriller"],"rating":"7.5","votes":"1,234"}
`)
	reviewsPath := writeFile(t, "reviews.csv", "movie_id,review_text\n"+
		"tt0000001,Great film\n"+
		"tt0000001,Great film\n"+
		"tt0000002,Too long\n"+
		"tt0000002,\n")

	logger := report.NullLogger()

	if err := importMovies(db, logger, moviesPath); err != nil {
		t.Fatalf("importMovies() error = %v", err)
	}
	if err := importReviews(db, logger, reviewsPath); err != nil {
		t.Fatalf("importReviews() error = %v", err)
	}

	movies, err := db.CountMovies()
	if err != nil {
		t.Fatalf("CountMovies() error = %v", err)
	}
	if movies != 2 {
		t.Errorf("movies = %d, want 2 (record without movie_id is rejected)", movies)
	}

	alpha, err := db.GetMovie("tt0000001")
	if err != nil || alpha == nil {
		t.Fatalf("GetMovie() = %v, %v", alpha, err)
	}
	if alpha.Votes != 2_900_000 {
		t.Errorf("votes = %d, want 2900000", alpha.Votes)
	}

	counts, err := db.CountReviews()
	if err != nil {
		t.Fatalf("CountReviews() error = %v", err)
	}
	if counts.Total != 2 {
		t.Errorf("reviews = %d, want 2 (duplicate and empty text skipped)", counts.Total)
	}
}

func TestImportMoviesMissingFile(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer db.Close()

	err = importMovies(db, report.NullLogger(), filepath.Join(t.TempDir(), "missing.jsonl"))
	if err == nil {
		t.Error("expected error for missing file")
	}
}
