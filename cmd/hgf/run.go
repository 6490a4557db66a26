package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/hidden-gems/internal/engine"
	"github.com/franz/hidden-gems/internal/recommend"
	"github.com/franz/hidden-gems/internal/store"
	"github.com/franz/hidden-gems/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute underrated scores and recommendations and publish them",
	Long: `Run the scoring and recommendation engine over the imported catalog.

One run:
1. Reads every movie and review in a single snapshot
2. Averages review sentiment labels per movie
3. Computes the underrated score (sentiment x rating / (ln(1+votes) + 1))
   and the provisional score (rating / ln(1+votes))
4. Builds the top-N most genre-similar movies for every movie (Jaccard)
5. Replaces the published score and recommendation tables in one transaction

Readers never see a partially written result. Running twice on unchanged
inputs publishes identical rows.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int("top-n", recommend.DefaultTopN, "recommendations per movie")
	runCmd.Flags().Int("scaling-limit", recommend.DefaultScalingLimit, "catalog size above which a scaling warning is logged")

	viper.BindPFlag("top-n", runCmd.Flags().Lookup("top-n"))
	viper.BindPFlag("scaling-limit", runCmd.Flags().Lookup("scaling-limit"))
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	setupLogging()

	concurrency := GetConfigInt("concurrency", 4)
	topN := GetConfigInt("top-n", recommend.DefaultTopN)
	scalingLimit := GetConfigInt("scaling-limit", recommend.DefaultScalingLimit)

	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	util.InfoLog("=== Scoring & Recommendation Run ===")
	util.InfoLog("Concurrency: %d", concurrency)
	util.InfoLog("Recommendations per movie: %d", topN)

	eng := engine.New(&engine.Config{
		Store:        db,
		Concurrency:  concurrency,
		TopN:         topN,
		ScalingLimit: scalingLimit,
		Logger:       logger,
	})

	result, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	util.InfoLog("")
	util.SuccessLog("=== Run Summary ===")
	util.InfoLog("Run ID: %s", result.RunID)
	util.InfoLog("Movies: %s", humanize.Comma(int64(result.Movies)))
	util.InfoLog("Reviews: %s", humanize.Comma(int64(result.Reviews)))
	util.InfoLog("  Movies with sentiment: %s", humanize.Comma(int64(result.SentimentMovies)))
	if result.RejectedReviews > 0 {
		util.WarnLog("  Reviews not counted: %d", result.RejectedReviews)
	}
	util.InfoLog("Underrated scores: %s", humanize.Comma(int64(result.ScoredMovies)))
	util.InfoLog("Provisional scores: %s", humanize.Comma(int64(result.ProvisionalScore)))
	if len(result.ScoreErrors) > 0 {
		util.WarnLog("  Malformed records: %d", len(result.ScoreErrors))
	}
	util.InfoLog("Recommendation edges: %s (%s movies)",
		humanize.Comma(int64(result.Edges)), humanize.Comma(int64(result.RecommendSources)))
	util.InfoLog("Total time: %v", result.Duration.Round(time.Millisecond))

	util.InfoLog("")
	util.InfoLog("Next step: hgf show gems")

	return nil
}
