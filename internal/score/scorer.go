package score

import (
	"fmt"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

// EventLogger receives per-movie scoring events. *report.EventLogger implements it.
type EventLogger interface {
	LogScore(runID, movieID string, underrated, provisional *float64) error
	LogScoreRejected(runID, movieID string, err error) error
}

type nopLogger struct{}

func (nopLogger) LogScore(string, string, *float64, *float64) error { return nil }
func (nopLogger) LogScoreRejected(string, string, error) error { return nil }

// Scorer fills in both underrated scores for a set of movies
type Scorer struct {
	runID  string
	logger EventLogger
}

// Config holds scorer configuration
type Config struct {
	RunID  string
	Logger EventLogger
}

// New creates a new Scorer
func New(cfg *Config) *Scorer {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &Scorer{
		runID:  cfg.RunID,
		logger: logger,
	}
}

// Result represents scoring results
type Result struct {
	Scored      int // movies with an underrated score
	Provisional int // movies with a provisional score
	Unscored    int // movies with neither
	Errors      []error
}

// Score sets UnderratedScore and ProvisionalScore on every movie.
// A movie with malformed inputs gets no scores and is reported in Result.Errors.
func (s *Scorer) Score(movies []*catalog.Movie) *Result {
	result := &Result{
		Errors: make([]error, 0),
	}

	withSentiment := Calculator{Mode: WithSentiment}
	provisional := Calculator{Mode: Provisional}

	for _, m := range movies {
		underrated, err := withSentiment.Score(m)
		if err == nil {
			m.ProvisionalScore, err = provisional.Score(m)
		}
		if err != nil {
			m.UnderratedScore, m.ProvisionalScore = catalog.None(), catalog.None()
			err = fmt.Errorf("movie %s: %w", m.MovieID, err)
			util.WarnLog("Skipping score for %s: %v", m.MovieID, err)
			s.logger.LogScoreRejected(s.runID, m.MovieID, err)
			result.Errors = append(result.Errors, err)
			result.Unscored++
			continue
		}
		m.UnderratedScore = underrated

		s.logger.LogScore(s.runID, m.MovieID, m.UnderratedScore.Ptr(), m.ProvisionalScore.Ptr())
		if m.UnderratedScore.Valid {
			result.Scored++
		}
		if m.ProvisionalScore.Valid {
			result.Provisional++
		}
		if !m.UnderratedScore.Valid && !m.ProvisionalScore.Valid {
			result.Unscored++
		}
	}

	util.DebugLog("Scored %d movies (%d provisional, %d unscored)", result.Scored, result.Provisional, result.Unscored)

	return result
}
