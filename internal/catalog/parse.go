package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/franz/hidden-gems/internal/util"
)

// Scalar is a JSON value that may be a string, a number or null.
// Ingestion emits ratings and votes in either form depending on the source page.
type Scalar struct {
	Text string
	Null bool
}

// UnmarshalJSON accepts strings, numbers and null
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = Scalar{Null: true}
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = Scalar{Text: str}
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("expected string, number or null, got %s", string(data))
	}
	*s = Scalar{Text: num.String()}
	return nil
}

// StringOf wraps a CSV cell; empty cells are null
func StringOf(v string) Scalar {
	if strings.TrimSpace(v) == "" {
		return Scalar{Null: true}
	}
	return Scalar{Text: v}
}

// GenreField accepts either a comma-joined string or a list of strings
type GenreField []string

// UnmarshalJSON accepts "Drama, Crime", ["Drama", "Crime"] or null
func (g *GenreField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*g = nil
		return nil
	}
	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*g = list
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("genre must be a string or a list of strings: %w", err)
	}
	*g = strings.Split(str, ",")
	return nil
}

// MovieRecord is a movie as handed over by the ingestion collaborator
type MovieRecord struct {
	MovieID string     `json:"movie_id"`
	Title   string     `json:"title"`
	Genre   GenreField `json:"genre"`
	Rating  Scalar     `json:"rating"`
	Votes   Scalar     `json:"votes"`
	URL     string     `json:"url"`
}

// ReviewRecord is a review as handed over by the ingestion collaborator
type ReviewRecord struct {
	MovieID    string `json:"movie_id"`
	ReviewID   Scalar `json:"review_id"` // optional; string or number
	ReviewText string `json:"review_text"`
}

// ParseRating parses a rating value. Empty, null and NaN are absent.
// Non-numeric and negative ratings are malformed.
func ParseRating(s Scalar) (NullFloat, error) {
	text := strings.TrimSpace(s.Text)
	if s.Null || text == "" || strings.EqualFold(text, "nan") {
		return None(), nil
	}

	// "8.5/10" is how rating badges read on some pages
	text = strings.TrimSuffix(text, "/10")

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(v, 0) {
		return None(), fmt.Errorf("%w: rating %q is not a number", util.ErrMalformedInput, s.Text)
	}
	if math.IsNaN(v) {
		return None(), nil
	}
	if v < 0 {
		return None(), fmt.Errorf("%w: rating %v is negative", util.ErrMalformedInput, v)
	}
	return Some(v), nil
}

// ParseVotes converts a vote count such as "2.9M", "915K", "(1,234)" or 1234
// to an integer. Empty and null counts default to 0.
func ParseVotes(s Scalar) (int64, error) {
	text := strings.TrimSpace(s.Text)
	text = strings.Trim(text, "()")
	text = strings.ReplaceAll(text, ",", "")
	text = strings.TrimSpace(text)
	if s.Null || text == "" {
		return 0, nil
	}

	multiplier := 1.0
	switch strings.ToUpper(text[len(text)-1:]) {
	case "M":
		multiplier = 1_000_000
		text = text[:len(text)-1]
	case "K":
		multiplier = 1_000
		text = text[:len(text)-1]
	}

	var votes int64
	if multiplier == 1 {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			// JSON numbers may arrive as "1234.0"
			f, ferr := strconv.ParseFloat(text, 64)
			if ferr != nil || f != math.Trunc(f) {
				return 0, fmt.Errorf("%w: vote count %q", util.ErrMalformedInput, s.Text)
			}
			if !fitsInt64(f) {
				return 0, fmt.Errorf("%w: vote count %q out of range", util.ErrMalformedInput, s.Text)
			}
			n = int64(f)
		}
		votes = n
	} else {
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: vote count %q", util.ErrMalformedInput, s.Text)
		}
		f = math.Round(f * multiplier)
		if !fitsInt64(f) {
			return 0, fmt.Errorf("%w: vote count %q out of range", util.ErrMalformedInput, s.Text)
		}
		votes = int64(f)
	}

	if votes < 0 {
		return 0, fmt.Errorf("%w: vote count %q is negative", util.ErrMalformedInput, s.Text)
	}
	return votes, nil
}

// fitsInt64 reports whether f converts to int64 without overflow.
func fitsInt64(f float64) bool {
	return f > math.MinInt64 && f < math.MaxInt64
}

// ToMovie validates a record and converts it to a Movie
func (r *MovieRecord) ToMovie() (*Movie, error) {
	id := strings.TrimSpace(r.MovieID)
	if id == "" {
		return nil, fmt.Errorf("%w: movie_id is empty", util.ErrMalformedInput)
	}

	rating, err := ParseRating(r.Rating)
	if err != nil {
		return nil, fmt.Errorf("movie %s: %w", id, err)
	}

	votes, err := ParseVotes(r.Votes)
	if err != nil {
		return nil, fmt.Errorf("movie %s: %w", id, err)
	}

	return &Movie{
		MovieID: id,
		Title:   strings.TrimSpace(r.Title),
		Genres:  NewGenreSet(r.Genre...),
		Rating:  rating,
		Votes:   votes,
		URL:     strings.TrimSpace(r.URL),
	}, nil
}

// ToReview validates a record and converts it to an unlabeled Review
func (r *ReviewRecord) ToReview() (*Review, error) {
	id := strings.TrimSpace(r.MovieID)
	if id == "" {
		return nil, fmt.Errorf("%w: review has no movie_id", util.ErrMalformedInput)
	}
	text := strings.TrimSpace(r.ReviewText)
	if text == "" {
		return nil, fmt.Errorf("%w: review for %s has empty text", util.ErrMalformedInput, id)
	}
	review := &Review{MovieID: id, Text: text}
	if !r.ReviewID.Null {
		review.SourceID = strings.TrimSpace(r.ReviewID.Text)
	}
	return review, nil
}
