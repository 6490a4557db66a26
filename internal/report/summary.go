package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/score"
	"github.com/franz/hidden-gems/internal/store"
)

// SummaryReport represents a complete summary report
type SummaryReport struct {
	GeneratedAt time.Time

	// Catalog statistics
	Movies           int
	MoviesWithGenres int
	MoviesWithRating int
	Reviews          int
	LabeledReviews   int
	PositiveReviews  int
	ReviewedMovies   int

	// Latest published run
	LatestRun *store.Run

	// Score statistics
	ScoredMovies      int
	ProvisionalMovies int
	TopGems           []GemEntry
	TopProvisional    []GemEntry

	// Recommendation statistics
	RecommendationEdges int
	MoviesWithRecs      int
	AverageSimilarity   float64
	TopGenres           []GenreCount

	// Metadata
	DatabasePath string
	EventLogPath string
}

// GemEntry is one row of a hidden gems table
type GemEntry struct {
	Rank      int
	MovieID   string
	Title     string
	URL       string
	Genres    string
	Rating    catalog.NullFloat
	Votes     int64
	Sentiment catalog.NullFloat
	Score     float64
}

// GenreCount counts movies per genre
type GenreCount struct {
	Genre string
	Count int
}

// GenerateSummaryReport creates a summary report from the published tables
func GenerateSummaryReport(db *store.Store, limit int) (*SummaryReport, error) {
	if limit <= 0 {
		limit = 20
	}

	report := &SummaryReport{
		GeneratedAt:    time.Now(),
		TopGems:        make([]GemEntry, 0),
		TopProvisional: make([]GemEntry, 0),
		TopGenres:      make([]GenreCount, 0),
	}

	movies, err := db.GetScoredMovies()
	if err != nil {
		return nil, fmt.Errorf("failed to load movies: %w", err)
	}

	genreCounts := make(map[string]int)
	for _, m := range movies {
		report.Movies++
		if len(m.Genres) > 0 {
			report.MoviesWithGenres++
		}
		if m.Rating.Valid {
			report.MoviesWithRating++
		}
		if m.UnderratedScore.Valid {
			report.ScoredMovies++
		}
		if m.ProvisionalScore.Valid {
			report.ProvisionalMovies++
		}
		for g := range m.Genres {
			genreCounts[g]++
		}
	}
	report.TopGenres = topGenres(genreCounts, 10)

	counts, err := db.CountReviews()
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews: %w", err)
	}
	report.Reviews = counts.Total
	report.LabeledReviews = counts.Labeled
	report.PositiveReviews = counts.Positive
	report.ReviewedMovies = counts.Movies

	run, err := db.GetLatestRun()
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	report.LatestRun = run

	report.TopGems = gemEntries(movies, score.WithSentiment, limit)
	report.TopProvisional = gemEntries(movies, score.Provisional, limit)

	edges, err := db.GetAllEdges()
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	report.RecommendationEdges = len(edges)
	sources := make(map[string]struct{})
	var total float64
	for _, e := range edges {
		sources[e.MovieID] = struct{}{}
		total += e.Similarity
	}
	report.MoviesWithRecs = len(sources)
	if len(edges) > 0 {
		report.AverageSimilarity = total / float64(len(edges))
	}

	return report, nil
}

// gemEntries ranks movies by mode and keeps the first limit
func gemEntries(movies []*catalog.Movie, mode score.Mode, limit int) []GemEntry {
	ranked := score.Rank(movies, mode)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	entries := make([]GemEntry, 0, len(ranked))
	for i, m := range ranked {
		entries = append(entries, GemEntry{
			Rank:      i + 1,
			MovieID:   m.MovieID,
			Title:     m.Title,
			URL:       m.URL,
			Genres:    m.Genres.String(),
			Rating:    m.Rating,
			Votes:     m.Votes,
			Sentiment: m.SentimentScore,
			Score:     score.Value(m, mode).Float64,
		})
	}
	return entries
}

// topGenres returns the most common genres, ties broken by name
func topGenres(counts map[string]int, limit int) []GenreCount {
	genres := make([]GenreCount, 0, len(counts))
	for g, c := range counts {
		genres = append(genres, GenreCount{Genre: g, Count: c})
	}

	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genres[i].Genre < genres[j].Genre
	})

	if len(genres) > limit {
		genres = genres[:limit]
	}
	return genres
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// RenderMarkdown formats the summary report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	// Header
	md.WriteString("# Hidden Gems Finder - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## 📊 Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Movies | %s |\n", humanize.Comma(int64(report.Movies))))
	md.WriteString(fmt.Sprintf("| Movies with Genres | %s |\n", humanize.Comma(int64(report.MoviesWithGenres))))
	md.WriteString(fmt.Sprintf("| Movies with Rating | %s |\n", humanize.Comma(int64(report.MoviesWithRating))))
	md.WriteString(fmt.Sprintf("| Reviews | %s |\n", humanize.Comma(int64(report.Reviews))))
	md.WriteString(fmt.Sprintf("| Labeled Reviews | %s |\n", humanize.Comma(int64(report.LabeledReviews))))
	if report.LabeledReviews > 0 {
		positive := float64(report.PositiveReviews) / float64(report.LabeledReviews) * 100
		md.WriteString(fmt.Sprintf("| Positive Share | %.1f%% |\n", positive))
	}
	md.WriteString("\n")

	// Latest run
	if run := report.LatestRun; run != nil {
		md.WriteString("## ⚡ Latest Run\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Run ID | `%s` |\n", run.RunID))
		md.WriteString(fmt.Sprintf("| Published | %s (%s) |\n",
			run.PublishedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.PublishedAt)))
		md.WriteString(fmt.Sprintf("| Scored Movies | %s of %s |\n",
			humanize.Comma(int64(run.ScoredMovies)), humanize.Comma(int64(run.Movies))))
		md.WriteString(fmt.Sprintf("| Recommendation Edges | %s |\n", humanize.Comma(int64(run.RecommendationEdges))))
		if run.Duration > 0 {
			md.WriteString(fmt.Sprintf("| Duration | %s |\n", run.Duration.Round(time.Millisecond)))
		}
		md.WriteString("\n")
	} else {
		md.WriteString("*No run has been published yet. Run `hgf run` first.*\n\n")
	}

	// Hidden gems
	if len(report.TopGems) > 0 {
		md.WriteString(fmt.Sprintf("## 💎 Top Hidden Gems (%d)\n\n", len(report.TopGems)))
		md.WriteString("*Positive sentiment and a strong rating behind few votes*\n\n")
		writeGemTable(&md, report.TopGems, true)
	}

	if len(report.TopProvisional) > 0 {
		md.WriteString(fmt.Sprintf("## 🔎 Provisional Ranking (%d)\n\n", len(report.TopProvisional)))
		md.WriteString("*Rating against vote count only, before sentiment is known*\n\n")
		writeGemTable(&md, report.TopProvisional, false)
	}

	// Recommendations
	if report.RecommendationEdges > 0 {
		md.WriteString("## 🔗 Recommendations\n\n")
		md.WriteString("| Metric | Value |\n")
		md.WriteString("|--------|-------|\n")
		md.WriteString(fmt.Sprintf("| Edges | %s |\n", humanize.Comma(int64(report.RecommendationEdges))))
		md.WriteString(fmt.Sprintf("| Movies with Recommendations | %s |\n", humanize.Comma(int64(report.MoviesWithRecs))))
		md.WriteString(fmt.Sprintf("| Average Similarity | %.3f |\n", report.AverageSimilarity))
		md.WriteString("\n")
	}

	if len(report.TopGenres) > 0 {
		md.WriteString("## 🎬 Top Genres\n\n")
		md.WriteString("| Genre | Movies |\n")
		md.WriteString("|-------|--------|\n")
		for _, g := range report.TopGenres {
			md.WriteString(fmt.Sprintf("| %s | %s |\n", escapeCell(g.Genre), humanize.Comma(int64(g.Count))))
		}
		md.WriteString("\n")
	}

	// Footer
	md.WriteString("---\n\n")
	md.WriteString("*Generated by [HGF](https://github.com/franz/hidden-gems) - Hidden Gems Finder*\n")

	return md.String()
}

func writeGemTable(md *strings.Builder, gems []GemEntry, withSentiment bool) {
	if withSentiment {
		md.WriteString("| # | Title | Genres | Rating | Votes | Sentiment | Score |\n")
		md.WriteString("|---|-------|--------|--------|-------|-----------|-------|\n")
	} else {
		md.WriteString("| # | Title | Genres | Rating | Votes | Score |\n")
		md.WriteString("|---|-------|--------|--------|-------|-------|\n")
	}

	for _, g := range gems {
		title := escapeCell(g.Title)
		if title == "" {
			title = g.MovieID
		}
		if g.URL != "" {
			title = fmt.Sprintf("[%s](%s)", title, g.URL)
		}

		rating := "n/a"
		if g.Rating.Valid {
			rating = fmt.Sprintf("%.1f", g.Rating.Float64)
		}

		md.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |", g.Rank, title, escapeCell(g.Genres), rating, humanize.Comma(g.Votes)))
		if withSentiment {
			md.WriteString(fmt.Sprintf(" %s |", formatPercent(g.Sentiment)))
		}
		md.WriteString(fmt.Sprintf(" %.4f |\n", g.Score))
	}
	md.WriteString("\n")
}

func formatPercent(v catalog.NullFloat) string {
	if !v.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", v.Float64*100)
}

// escapeCell keeps table cells on one column
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
