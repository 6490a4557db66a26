package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/score"
	"github.com/franz/hidden-gems/internal/store"
	"github.com/franz/hidden-gems/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show published hidden gems and recommendations",
	Long: `Display the output of the last published run.

  hgf show gems           top movies by underrated score
  hgf show recs <movie>   the similar-genre recommendations for one movie

Use 'hgf run' first to publish results.`,
}

var showGemsCmd = &cobra.Command{
	Use:   "gems",
	Short: "List the top hidden gems",
	Long: `List movies by underrated score, highest first. Ties are broken by movie ID.

Movies without a score (no rating, or no labeled reviews) are not listed.
Use --mode provisional (or --provisional) to rank by the pre-sentiment score
rating / ln(1+votes).`,
	Args: cobra.NoArgs,
	RunE: runShowGems,
}

var showRecsCmd = &cobra.Command{
	Use:   "recs <movie>",
	Short: "Show recommendations for a movie",
	Long: `Show the published recommendations for a movie, in rank order.

The movie may be given by its ID (e.g. tt0111161) or by part of its title.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runShowRecs,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.AddCommand(showGemsCmd)
	showCmd.AddCommand(showRecsCmd)

	showGemsCmd.Flags().IntP("limit", "n", 10, "number of movies to show")
	showGemsCmd.Flags().String("mode", score.WithSentiment.String(), "score to rank by: with-sentiment or provisional")
	showGemsCmd.Flags().Bool("provisional", false, "shorthand for --mode provisional")
}

func openReadOnly() (*store.Store, error) {
	dbPath := viper.GetString("db")
	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// gemsMode resolves --mode and the --provisional shorthand.
func gemsMode(name string, provisional bool) (score.Mode, error) {
	if provisional {
		return score.Provisional, nil
	}
	return score.ParseMode(name)
}

func runShowGems(cmd *cobra.Command, args []string) error {
	setupLogging()

	limit, _ := cmd.Flags().GetInt("limit")
	modeName, _ := cmd.Flags().GetString("mode")
	provisional, _ := cmd.Flags().GetBool("provisional")
	mode, err := gemsMode(modeName, provisional)
	if err != nil {
		return err
	}

	db, err := openReadOnly()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := db.GetLatestRun()
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}
	if run == nil {
		util.WarnLog("No results published yet. Run 'hgf run' first.")
		return nil
	}

	movies, err := db.TopHiddenGems(mode, limit)
	if err != nil {
		return fmt.Errorf("failed to get hidden gems: %w", err)
	}

	util.InfoLog("=== Top Hidden Gems (%s) ===", mode)
	util.InfoLog("Run %s, published %s", run.RunID, humanize.Time(run.PublishedAt))
	fmt.Println()

	if len(movies) == 0 {
		util.WarnLog("No movie has a %s score", mode)
		return nil
	}

	for i, m := range movies {
		fmt.Printf("%3d. %s  (%s)\n", i+1, m.Title, m.MovieID)
		fmt.Printf("     Score:     %s\n", score.Value(m, mode))
		fmt.Printf("     Rating:    %s  Votes: %s\n", formatRating(m.Rating), humanize.Comma(m.Votes))
		if mode == score.WithSentiment {
			fmt.Printf("     Sentiment: %s  (%d reviews)\n", m.SentimentScore, m.ReviewCount)
		}
		if len(m.Genres) > 0 {
			fmt.Printf("     Genres:    %s\n", m.Genres)
		}
		if m.URL != "" {
			fmt.Printf("     URL:       %s\n", m.URL)
		}
	}

	return nil
}

func runShowRecs(cmd *cobra.Command, args []string) error {
	setupLogging()

	query := strings.Join(args, " ")

	db, err := openReadOnly()
	if err != nil {
		return err
	}
	defer db.Close()

	matches, err := db.FindMovies(query, 10)
	if err != nil {
		return fmt.Errorf("failed to find movie: %w", err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: no movie matches %q", util.ErrNotFound, query)
	}

	movie := matches[0]
	if len(matches) > 1 && movie.MovieID != query {
		util.InfoLog("%d movies match %q, showing the first:", len(matches), query)
		for _, m := range matches {
			util.InfoLog("  %s  %s", m.MovieID, m.Title)
		}
		fmt.Println()
	}

	recs, err := db.GetRecommendations(movie.MovieID)
	if err != nil {
		return fmt.Errorf("failed to get recommendations: %w", err)
	}

	util.InfoLog("=== Recommendations for %s (%s) ===", movie.Title, movie.MovieID)
	if len(movie.Genres) > 0 {
		util.InfoLog("Genres: %s", movie.Genres)
	}
	fmt.Println()

	if len(recs) == 0 {
		if len(movie.Genres) == 0 {
			util.WarnLog("Movie has no genres, so no recommendations are produced")
		} else {
			util.WarnLog("No recommendations published. Run 'hgf run' first.")
		}
		return nil
	}

	for _, rec := range recs {
		fmt.Printf("%3d. %-40s %s  similarity %.3f\n",
			rec.Edge.Rank, truncateTitle(rec.Movie.Title, 40), rec.Movie.MovieID, rec.Edge.Similarity)
		if len(rec.Movie.Genres) > 0 {
			fmt.Printf("     %s\n", rec.Movie.Genres)
		}
	}

	return nil
}

func formatRating(r catalog.NullFloat) string {
	if v, ok := r.Get(); ok {
		return fmt.Sprintf("%.1f", v)
	}
	return "n/a"
}

func truncateTitle(title string, width int) string {
	runes := []rune(title)
	if len(runes) <= width {
		return title
	}
	return string(runes[:width-1]) + "…"
}
