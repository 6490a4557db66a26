// Package catalog holds the movie, review and recommendation records shared by
// every pipeline stage, together with the parsing rules applied at import time.
package catalog

import (
	"fmt"
	"math"
)

// NullFloat is a real value that may be absent.
// The zero value is absent; absence is never the same as 0.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// Some returns a present value. NaN and ±Inf are treated as absent.
func Some(v float64) NullFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NullFloat{}
	}
	return NullFloat{Float64: v, Valid: true}
}

// None returns an absent value
func None() NullFloat {
	return NullFloat{}
}

// Get returns the value and whether it is present
func (n NullFloat) Get() (float64, bool) {
	return n.Float64, n.Valid
}

// Ptr returns nil when absent, for database/sql and JSON encoding
func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func (n NullFloat) String() string {
	if !n.Valid {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", n.Float64)
}

// Movie is one catalog entry. Identity fields come from ingestion and are never
// changed by the engine; the score fields are derived on every run.
type Movie struct {
	MovieID string
	Title   string
	Genres  GenreSet
	Rating  NullFloat
	Votes   int64
	URL     string

	ReviewCount      int // labeled reviews behind SentimentScore
	SentimentScore   NullFloat
	UnderratedScore  NullFloat
	ProvisionalScore NullFloat
}

// Label is a binary sentiment label assigned by the external classifier
type Label int

const (
	Negative Label = 0
	Positive Label = 1
)

// NullLabel is a sentiment label that may not have been assigned yet
type NullLabel struct {
	Label Label
	Valid bool
}

// LabelOf wraps a label as present
func LabelOf(l Label) NullLabel {
	return NullLabel{Label: l, Valid: true}
}

// Review is a single review of a movie
type Review struct {
	ID        int64
	MovieID   string
	SourceID  string // review id assigned by ingestion, empty when it has none
	Text      string
	Sentiment NullLabel
}

// RecommendationEdge is a directed "similar to" relation between two movies
type RecommendationEdge struct {
	MovieID            string
	RecommendedMovieID string
	Similarity         float64
	Rank               int // 1-based position in the movie's list
}
