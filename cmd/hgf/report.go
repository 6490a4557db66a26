package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/franz/hidden-gems/internal/report"
	"github.com/franz/hidden-gems/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the database",
	Long: `Generate a summary report in Markdown format.

The report includes:
- Catalog and review statistics
- The latest published run
- Top hidden gems and the provisional ranking
- Recommendation coverage
- Most common genres

The report is saved to artifacts/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: artifacts/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file to reference in the report (optional)")
	reportCmd.Flags().IntP("limit", "n", 20, "number of movies per ranking")
}

func runReport(cmd *cobra.Command, args []string) error {
	setupLogging()

	dbPath := viper.GetString("db")

	util.InfoLog("=== Generating Summary Report ===")
	util.InfoLog("Database: %s", dbPath)

	db, err := openReadOnly()
	if err != nil {
		return err
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")

	util.InfoLog("Analyzing data...")
	summaryReport, err := report.GenerateSummaryReport(db, limit)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	summaryReport.DatabasePath = dbPath
	summaryReport.EventLogPath, _ = cmd.Flags().GetString("event-log")

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(GetConfigString("artifacts", "artifacts"), "reports", timestamp)
	}

	outputPath := filepath.Join(outputDir, "summary.md")

	util.InfoLog("Writing report to: %s", outputPath)
	if err := report.WriteMarkdownReport(summaryReport, outputPath); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	util.SuccessLog("Report generated successfully!")
	util.InfoLog("")
	util.InfoLog("Report saved to: %s", outputPath)
	util.InfoLog("")
	util.InfoLog("Summary:")
	util.InfoLog("  Movies: %s", humanize.Comma(int64(summaryReport.Movies)))
	util.InfoLog("  Reviews: %s (%s labeled)",
		humanize.Comma(int64(summaryReport.Reviews)), humanize.Comma(int64(summaryReport.LabeledReviews)))
	if summaryReport.LatestRun == nil {
		util.WarnLog("  No run published yet")
	} else {
		util.InfoLog("  Scored movies: %s", humanize.Comma(int64(summaryReport.ScoredMovies)))
		util.InfoLog("  Recommendation edges: %s", humanize.Comma(int64(summaryReport.RecommendationEdges)))
	}

	return nil
}
