package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/report"
	"github.com/franz/hidden-gems/internal/store"
	"github.com/franz/hidden-gems/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import movies and reviews from the ingestion hand-off files",
	Long: `Import movie and review records into the database.

Files may be JSON Lines (.jsonl), a JSON array (.json) or CSV with a header row.
Movie records carry movie_id, title, genre, rating, votes and url; vote counts
such as "2.9M", "915K" or "1,234" are accepted. Review records carry movie_id,
review_text and an optional review_id.

Movies are upserted by movie_id. A review whose review_id was already imported
for the same movie is skipped; reviews without a review_id are skipped when the
same text was already imported for that movie. Importing the same file twice is
safe. Records that cannot be parsed are reported and skipped.`,
	Example: `  hgf import --movies movies.jsonl --reviews reviews.csv`,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("movies", "", "movie records file")
	importCmd.Flags().String("reviews", "", "review records file")
	viper.BindPFlag("import.movies", importCmd.Flags().Lookup("movies"))
	viper.BindPFlag("import.reviews", importCmd.Flags().Lookup("reviews"))
}

func runImport(cmd *cobra.Command, args []string) error {
	moviesPath := GetConfigString("import.movies", "")
	reviewsPath := GetConfigString("import.reviews", "")
	if moviesPath == "" && reviewsPath == "" {
		return fmt.Errorf("%w: nothing to import (use --movies and/or --reviews)", util.ErrInvalidConfig)
	}

	setupLogging()

	for _, path := range []string{moviesPath, reviewsPath} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("input file not readable: %w", err)
		}
	}

	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	startTime := time.Now()

	if moviesPath != "" {
		util.InfoLog("=== Importing movies ===")
		if err := importMovies(db, logger, moviesPath); err != nil {
			return err
		}
	}

	if reviewsPath != "" {
		util.InfoLog("")
		util.InfoLog("=== Importing reviews ===")
		if err := importReviews(db, logger, reviewsPath); err != nil {
			return err
		}
	}

	movies, _ := db.CountMovies()
	reviews, _ := db.CountReviews()

	util.InfoLog("")
	util.SuccessLog("Import complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("Database: %s", dbPath)
	util.InfoLog("  Movies:  %s", humanize.Comma(int64(movies)))
	if reviews != nil {
		util.InfoLog("  Reviews: %s (%s labeled)", humanize.Comma(int64(reviews.Total)), humanize.Comma(int64(reviews.Labeled)))
	}

	util.InfoLog("")
	util.InfoLog("Next step: hgf label")

	return nil
}

func importMovies(db *store.Store, logger *report.EventLogger, path string) error {
	result, err := catalog.ReadMovieFile(path)
	if err != nil {
		return fmt.Errorf("failed to read movies: %w", err)
	}

	rejected := len(result.Errors)
	for _, readErr := range result.Errors {
		util.WarnLog("Skipping movie record: %v", readErr)
		logger.LogRejected(report.EventImport, path, "", readErr)
	}

	movies := make([]*catalog.Movie, 0, len(result.Records))
	for i := range result.Records {
		movie, err := result.Records[i].ToMovie()
		if err != nil {
			rejected++
			util.WarnLog("Skipping movie %q: %v", result.Records[i].MovieID, err)
			logger.LogRejected(report.EventImport, path, result.Records[i].MovieID, err)
			continue
		}
		movies = append(movies, movie)
	}

	if err := db.UpsertMovieBatch(movies); err != nil {
		logger.LogError(report.EventImport, path, err)
		return fmt.Errorf("failed to store movies: %w", err)
	}

	logger.LogImport(path, "movies", len(movies), rejected)

	util.SuccessLog("Imported %s movies from %s", humanize.Comma(int64(len(movies))), path)
	if rejected > 0 {
		util.WarnLog("  Rejected: %d", rejected)
	}
	return nil
}

func importReviews(db *store.Store, logger *report.EventLogger, path string) error {
	result, err := catalog.ReadReviewFile(path)
	if err != nil {
		return fmt.Errorf("failed to read reviews: %w", err)
	}

	rejected := len(result.Errors)
	for _, readErr := range result.Errors {
		util.WarnLog("Skipping review record: %v", readErr)
		logger.LogRejected(report.EventImport, path, "", readErr)
	}

	reviews := make([]*catalog.Review, 0, len(result.Records))
	for i := range result.Records {
		review, err := result.Records[i].ToReview()
		if err != nil {
			rejected++
			util.DebugLog("Skipping review for %q: %v", result.Records[i].MovieID, err)
			logger.LogRejected(report.EventImport, path, result.Records[i].MovieID, err)
			continue
		}
		reviews = append(reviews, review)
	}

	inserted, err := db.InsertReviewBatch(reviews)
	if err != nil {
		logger.LogError(report.EventImport, path, err)
		return fmt.Errorf("failed to store reviews: %w", err)
	}

	logger.LogImport(path, "reviews", inserted, rejected)

	util.SuccessLog("Imported %s reviews from %s", humanize.Comma(int64(inserted)), path)
	if duplicates := len(reviews) - inserted; duplicates > 0 {
		util.InfoLog("  Already present: %d", duplicates)
	}
	if rejected > 0 {
		util.WarnLog("  Rejected: %d", rejected)
	}
	return nil
}
