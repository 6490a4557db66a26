package score

import (
	"errors"
	"math"
	"testing"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestUnderrated(t *testing.T) {
	tests := []struct {
		name      string
		sentiment catalog.NullFloat
		rating    catalog.NullFloat
		votes     int64
		want      float64
		wantValid bool
	}{
		{"zero votes uses denominator one", catalog.Some(0.8), catalog.Some(9.0), 0, 7.2, true},
		{"one vote", catalog.Some(1.0), catalog.Some(8.0), 1, 8.0 / (math.Log(2) + 1), true},
		{"negative sentiment mean", catalog.Some(0.0), catalog.Some(9.0), 10, 0, true},
		{"absent sentiment", catalog.None(), catalog.Some(9.0), 10, 0, false},
		{"absent rating", catalog.Some(0.5), catalog.None(), 10, 0, false},
		{"both absent", catalog.None(), catalog.None(), 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Underrated(tt.sentiment, tt.rating, tt.votes)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Valid != tt.wantValid {
				t.Fatalf("expected valid=%t, got %v", tt.wantValid, got)
			}
			if tt.wantValid && !approxEqual(got.Float64, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got.Float64)
			}
		})
	}
}

func TestUnderratedMonotonicity(t *testing.T) {
	score := func(s, r float64, v int64) float64 {
		got, err := Underrated(catalog.Some(s), catalog.Some(r), v)
		if err != nil || !got.Valid {
			t.Fatalf("Underrated(%v, %v, %d) = %v, %v", s, r, v, got, err)
		}
		return got.Float64
	}

	// Non-decreasing in sentiment and rating
	for _, s := range []float64{0, 0.25, 0.5, 0.75} {
		if score(s, 8, 100) > score(s+0.25, 8, 100) {
			t.Errorf("score decreased as sentiment rose from %v", s)
		}
	}
	for _, r := range []float64{1, 3, 5, 7, 9} {
		if score(0.7, r, 100) > score(0.7, r+1, 100) {
			t.Errorf("score decreased as rating rose from %v", r)
		}
	}

	// Non-increasing in votes
	votes := []int64{0, 1, 10, 100, 1000, 1000000}
	for i := 1; i < len(votes); i++ {
		if score(0.9, 8, votes[i]) > score(0.9, 8, votes[i-1]) {
			t.Errorf("score increased as votes rose from %d to %d", votes[i-1], votes[i])
		}
	}

	// The obscure title outranks the famous one on equal merit
	if score(0.9, 8.5, 1000000) >= score(0.9, 8.5, 100) {
		t.Error("expected 1e6 votes to score below 100 votes")
	}
}

func TestUnderratedNegativeVotes(t *testing.T) {
	got, err := Underrated(catalog.Some(0.5), catalog.Some(8.0), -1)
	if !errors.Is(err, util.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
	if got.Valid {
		t.Errorf("expected absent score, got %v", got)
	}

	if _, err := ProvisionalScore(catalog.Some(8.0), -5); !errors.Is(err, util.ErrMalformedInput) {
		t.Errorf("expected ErrMalformedInput, got %v", err)
	}
}

func TestProvisionalScore(t *testing.T) {
	tests := []struct {
		name      string
		rating    catalog.NullFloat
		votes     int64
		want      float64
		wantValid bool
	}{
		{"regular", catalog.Some(9.0), 100, 9.0 / math.Log(101), true},
		{"one vote", catalog.Some(6.0), 1, 6.0 / math.Log(2), true},
		{"zero votes has no defined score", catalog.Some(9.0), 0, 0, false},
		{"absent rating", catalog.None(), 100, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ProvisionalScore(tt.rating, tt.votes)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Valid != tt.wantValid {
				t.Fatalf("expected valid=%t, got %v", tt.wantValid, got)
			}
			if tt.wantValid && !approxEqual(got.Float64, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got.Float64)
			}
		})
	}
}

func TestCalculator(t *testing.T) {
	m := &catalog.Movie{MovieID: "tt1", Rating: catalog.Some(9.0), Votes: 0, SentimentScore: catalog.Some(0.8)}

	got, err := Calculator{Mode: WithSentiment}.Score(m)
	if err != nil || !approxEqual(got.Float64, 7.2) {
		t.Errorf("with-sentiment: expected 7.2, got %v (%v)", got, err)
	}

	got, err = Calculator{Mode: Provisional}.Score(m)
	if err != nil || got.Valid {
		t.Errorf("provisional with zero votes: expected absent, got %v (%v)", got, err)
	}

	if _, err := (Calculator{Mode: Mode(7)}).Score(m); !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for unknown mode, got %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", WithSentiment, false},
		{"with-sentiment", WithSentiment, false},
		{"Provisional", Provisional, false},
		{"popularity", WithSentiment, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %t", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRank(t *testing.T) {
	movies := []*catalog.Movie{
		{MovieID: "tt4", UnderratedScore: catalog.Some(2.0)},
		{MovieID: "tt2", UnderratedScore: catalog.Some(5.0)},
		{MovieID: "tt9"},
		{MovieID: "tt1", UnderratedScore: catalog.Some(2.0)},
		{MovieID: "tt3", ProvisionalScore: catalog.Some(1.0)},
	}

	ranked := Rank(movies, WithSentiment)

	want := []string{"tt2", "tt1", "tt4"}
	if len(ranked) != len(want) {
		t.Fatalf("expected %d ranked movies, got %d", len(want), len(ranked))
	}
	for i, m := range ranked {
		if m.MovieID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], m.MovieID)
		}
	}

	provisional := Rank(movies, Provisional)
	if len(provisional) != 1 || provisional[0].MovieID != "tt3" {
		t.Errorf("expected only tt3 in provisional ranking, got %d movies", len(provisional))
	}
}
