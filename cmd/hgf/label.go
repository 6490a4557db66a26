package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/hidden-gems/internal/sentiment"
	"github.com/franz/hidden-gems/internal/store"
	"github.com/franz/hidden-gems/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Label review sentiment with the external classifier",
	Long: `Send every unlabeled review to the sentiment classifier and store the result.

The classifier is any HTTP endpoint accepting {"inputs": "<text>"} and returning
Hugging Face text-classification predictions. Review text is truncated to the
classifier's input limit. Labels are cached by text hash, so identical reviews
are classified once and re-labeling after --relabel is cheap.

Reviews the classifier fails on stay unlabeled and are retried on the next run.
The command can be interrupted and resumed.`,
	Example: `  hgf label --classifier-url https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english
  HGF_CLASSIFIER_TOKEN=hf_xxx hgf label --rps 2`,
	RunE: runLabel,
}

func init() {
	rootCmd.AddCommand(labelCmd)

	labelCmd.Flags().String("classifier-url", "", "classifier inference endpoint")
	labelCmd.Flags().String("classifier-token", "", "bearer token for the classifier")
	labelCmd.Flags().String("model", "", "model name recorded in the label cache (default: endpoint URL)")
	labelCmd.Flags().Float64("rps", sentiment.DefaultRequestsPerSecond, "maximum classifier requests per second")
	labelCmd.Flags().Int("max-chars", sentiment.DefaultMaxChars, "truncate review text to this many characters")
	labelCmd.Flags().Int("attempts", util.DefaultRetryConfig().MaxAttempts, "classifier attempts per review (1 disables retries)")
	labelCmd.Flags().Bool("relabel", false, "clear existing labels and classify every review again")
	labelCmd.Flags().Bool("clear-cache", false, "clear the label cache before labeling")

	viper.BindPFlag("classifier.url", labelCmd.Flags().Lookup("classifier-url"))
	viper.BindPFlag("classifier.token", labelCmd.Flags().Lookup("classifier-token"))
	viper.BindPFlag("classifier.model", labelCmd.Flags().Lookup("model"))
	viper.BindPFlag("classifier.rps", labelCmd.Flags().Lookup("rps"))
	viper.BindPFlag("classifier.max-chars", labelCmd.Flags().Lookup("max-chars"))
	viper.BindPFlag("classifier.attempts", labelCmd.Flags().Lookup("attempts"))
}

func runLabel(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	setupLogging()

	classifierURL := GetConfigString("classifier.url", "")
	if classifierURL == "" {
		return fmt.Errorf("%w: classifier URL is required (use --classifier-url or set classifier.url in config)", util.ErrInvalidConfig)
	}
	model := GetConfigString("classifier.model", classifierURL)
	concurrency := GetConfigInt("concurrency", 4)
	relabel, _ := cmd.Flags().GetBool("relabel")
	clearCache, _ := cmd.Flags().GetBool("clear-cache")

	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger := openEventLogger()
	defer logger.Close()

	client, err := sentiment.NewClient(sentiment.ClientConfig{
		URL:               classifierURL,
		Token:             GetConfigString("classifier.token", ""),
		Model:             model,
		RequestsPerSecond: GetConfigFloat("classifier.rps", sentiment.DefaultRequestsPerSecond),
		MaxChars:          GetConfigInt("classifier.max-chars", sentiment.DefaultMaxChars),
		Retry:             retryConfig(GetConfigInt("classifier.attempts", util.DefaultRetryConfig().MaxAttempts)),
	})
	if err != nil {
		return err
	}

	cache := sentiment.NewCache(db.DB(), client, model)
	if err := cache.EnsureSchema(); err != nil {
		return fmt.Errorf("failed to prepare label cache: %w", err)
	}
	if clearCache {
		if err := cache.ClearCache(); err != nil {
			return fmt.Errorf("failed to clear label cache: %w", err)
		}
		util.InfoLog("Label cache cleared")
	}

	if relabel {
		if err := db.ClearReviewLabels(); err != nil {
			return fmt.Errorf("failed to clear labels: %w", err)
		}
		util.InfoLog("Existing labels cleared")
	}

	util.InfoLog("=== Sentiment Labeling ===")
	util.InfoLog("Classifier: %s", classifierURL)
	util.InfoLog("Concurrency: %d", concurrency)

	labeler := sentiment.NewLabeler(&sentiment.Config{
		Store:       db,
		Classifier:  cache,
		Concurrency: concurrency,
		Logger:      logger,
	})

	startTime := time.Now()
	result, err := labeler.Label(ctx)
	if err != nil {
		if result != nil && result.Labeled > 0 {
			util.WarnLog("Interrupted after labeling %d reviews; run 'hgf label' again to resume", result.Labeled)
		}
		return fmt.Errorf("labeling failed: %w", err)
	}

	util.SuccessLog("Labeling complete in %v", time.Since(startTime).Round(time.Millisecond))
	util.InfoLog("  Reviews processed: %s", humanize.Comma(int64(result.Processed)))
	util.InfoLog("  Labeled: %s (%s positive)", humanize.Comma(int64(result.Labeled)), humanize.Comma(int64(result.Positive)))
	if len(result.Errors) > 0 {
		util.WarnLog("  Errors: %d (left unlabeled)", len(result.Errors))
	}

	if entries, hits, err := cache.GetStats(); err == nil {
		util.InfoLog("  Label cache: %s entries, %s hits", humanize.Comma(int64(entries)), humanize.Comma(hits))
	}

	util.InfoLog("")
	util.InfoLog("Next step: hgf run")

	return nil
}

// retryConfig builds the classifier retry policy for the given number of attempts
func retryConfig(attempts int) *util.RetryConfig {
	if attempts <= 1 {
		return util.NoRetry()
	}
	cfg := util.DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	return cfg
}
