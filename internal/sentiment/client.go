package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/util"
)

const (
	// DefaultMaxChars is the classifier's maximum input length
	DefaultMaxChars = 512

	// DefaultRequestsPerSecond keeps hosted inference endpoints from throttling us
	DefaultRequestsPerSecond = 5.0

	// UserAgent identifies this application to the inference endpoint
	UserAgent = "hgf-HiddenGemsFinder/1.0 (https://github.com/franz/hidden-gems)"
)

// Classifier assigns a binary sentiment label to a piece of text
type Classifier interface {
	Classify(ctx context.Context, text string) (catalog.Label, error)
}

// ClientConfig holds classifier client configuration
type ClientConfig struct {
	URL               string  // Inference endpoint accepting {"inputs": "..."}
	Token             string  // Optional bearer token
	Model             string  // Recorded in the label cache
	RequestsPerSecond float64 // 0 uses DefaultRequestsPerSecond
	MaxChars          int     // 0 uses DefaultMaxChars
	Timeout           time.Duration
	Retry             *util.RetryConfig
	HTTPClient        *http.Client
}

// Client calls a Hugging Face style text-classification endpoint
type Client struct {
	httpClient *http.Client
	url        string
	token      string
	model      string
	maxChars   int
	limiter    *rate.Limiter
	retry      *util.RetryConfig
}

// Prediction is one label/score pair returned by the endpoint
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewClient creates a new classifier client
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: classifier URL is required", util.ErrInvalidConfig)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = util.DefaultRetryConfig()
	}

	return &Client{
		httpClient: httpClient,
		url:        cfg.URL,
		token:      cfg.Token,
		model:      cfg.Model,
		maxChars:   maxChars,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retry:      retry,
	}, nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Classify labels text as positive or negative.
// Text longer than the classifier's input limit is truncated.
func (c *Client) Classify(ctx context.Context, text string) (catalog.Label, error) {
	text = Truncate(strings.TrimSpace(text), c.maxChars)
	if text == "" {
		return catalog.Negative, fmt.Errorf("%w: text cannot be empty", util.ErrMalformedInput)
	}

	predictions, err := util.RetryWithBackoff(ctx, c.retry, func() ([]Prediction, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.predict(ctx, text)
	}, "classify")
	if err != nil {
		return catalog.Negative, err
	}

	return LabelFromPredictions(predictions)
}

func (c *Client) predict(ctx context.Context, text string) ([]Prediction, error) {
	body, err := json.Marshal(map[string]string{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &util.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	return decodePredictions(data)
}

// decodePredictions accepts [[{...}]] (batched) and [{...}] (single input)
func decodePredictions(data []byte) ([]Prediction, error) {
	var nested [][]Prediction
	if err := json.Unmarshal(data, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("%w: empty prediction list", util.ErrClassifier)
		}
		return nested[0], nil
	}

	var flat []Prediction
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", util.ErrClassifier, err)
	}
	return flat, nil
}

// LabelFromPredictions picks the highest-scoring prediction and maps it to a label
func LabelFromPredictions(predictions []Prediction) (catalog.Label, error) {
	if len(predictions) == 0 {
		return catalog.Negative, fmt.Errorf("%w: no predictions", util.ErrClassifier)
	}

	best := predictions[0]
	for _, p := range predictions[1:] {
		if p.Score > best.Score {
			best = p
		}
	}

	switch strings.ToUpper(strings.TrimSpace(best.Label)) {
	case "POSITIVE", "POS", "LABEL_1":
		return catalog.Positive, nil
	case "NEGATIVE", "NEG", "LABEL_0":
		return catalog.Negative, nil
	}
	return catalog.Negative, fmt.Errorf("%w: unknown label %q", util.ErrClassifier, best.Label)
}

// Truncate shortens text to at most maxChars runes
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
