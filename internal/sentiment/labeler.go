package sentiment

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/hidden-gems/internal/catalog"
	"github.com/franz/hidden-gems/internal/report"
	"github.com/franz/hidden-gems/internal/store"
	"github.com/franz/hidden-gems/internal/util"
)

const labelBatchSize = 500

// ReviewStore is the part of the store the labeler reads from and writes to
type ReviewStore interface {
	GetUnlabeledReviews() ([]*catalog.Review, error)
	UpdateReviewLabels(updates []store.LabelUpdate) error
}

// Labeler assigns classifier labels to every unlabeled review
type Labeler struct {
	store       ReviewStore
	classifier  Classifier
	concurrency int
	logger      *report.EventLogger
}

// Config holds labeler configuration
type Config struct {
	Store       ReviewStore
	Classifier  Classifier
	Concurrency int
	Logger      *report.EventLogger
}

// NewLabeler creates a new review labeler
func NewLabeler(cfg *Config) *Labeler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Labeler{
		store:       cfg.Store,
		classifier:  cfg.Classifier,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// LabelResult represents labeling results
type LabelResult struct {
	Processed int
	Labeled   int
	Positive  int
	Errors    []error
}

// Label classifies unlabeled reviews and stores the labels in batches.
// A review the classifier fails on stays unlabeled and is retried by the next call.
func (l *Labeler) Label(ctx context.Context) (*LabelResult, error) {
	util.InfoLog("Starting sentiment labeling")

	reviews, err := l.store.GetUnlabeledReviews()
	if err != nil {
		return nil, fmt.Errorf("failed to get unlabeled reviews: %w", err)
	}

	if len(reviews) == 0 {
		util.InfoLog("No reviews to label")
		return &LabelResult{}, nil
	}

	total := len(reviews)
	util.InfoLog("Found %d reviews to label", total)

	result := &LabelResult{
		Errors: make([]error, 0),
	}

	var processed atomic.Int64
	var labeled atomic.Int64
	var positive atomic.Int64
	var failed atomic.Int64

	// Start progress reporter
	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	var bar *progressbar.ProgressBar
	if util.ShowProgress() {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Labeling"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("reviews"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		interval := 2 * time.Second
		if bar != nil {
			interval = 500 * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				if bar != nil {
					bar.Set(int(processed.Load()))
					bar.Finish()
				}
				return
			case <-ticker.C:
				p := processed.Load()
				if bar != nil {
					bar.Describe(fmt.Sprintf("Labeling | %d positive | %d errors", positive.Load(), failed.Load()))
					bar.Set(int(p))
				} else if p > 0 {
					percentage := float64(p) / float64(total) * 100
					util.InfoLog("Labeling reviews: %d/%d (%.1f%%) - labeled: %d, errors: %d",
						p, total, percentage, labeled.Load(), failed.Load())
				}
			}
		}
	}()

	reviewChan := make(chan *catalog.Review, l.concurrency*2)
	labelChan := make(chan store.LabelUpdate, labelBatchSize)

	var errorsMu sync.Mutex

	// Start batch label writer
	var writeErr error
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		batch := make([]store.LabelUpdate, 0, labelBatchSize)
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		flush := func() {
			if len(batch) == 0 {
				return
			}
			if err := l.store.UpdateReviewLabels(batch); err != nil {
				util.ErrorLog("Failed to store review labels: %v", err)
				if writeErr == nil {
					writeErr = err
				}
			}
			batch = batch[:0]
		}

		for {
			select {
			case update, ok := <-labelChan:
				if !ok {
					flush()
					return
				}
				batch = append(batch, update)
				if len(batch) >= labelBatchSize {
					flush()
				}
			case <-ticker.C:
				flush()
			}
		}
	}()

	// Start worker pool
	var wg sync.WaitGroup
	for i := 0; i < l.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for review := range reviewChan {
				select {
				case <-ctx.Done():
					return
				default:
				}

				label, err := l.classifier.Classify(ctx, review.Text)
				processed.Add(1)

				if err != nil {
					if ctx.Err() != nil {
						return
					}
					failed.Add(1)
					util.WarnLog("Failed to label review %d of %s: %v", review.ID, review.MovieID, err)

					errorsMu.Lock()
					result.Errors = append(result.Errors, fmt.Errorf("review %d: %w", review.ID, err))
					errorsMu.Unlock()

					l.logger.LogLabel(review.ID, review.MovieID, 0, err)
					continue
				}

				labeled.Add(1)
				if label == catalog.Positive {
					positive.Add(1)
				}
				l.logger.LogLabel(review.ID, review.MovieID, int(label), nil)
				labelChan <- store.LabelUpdate{ReviewID: review.ID, Label: label}
			}
		}()
	}

	// Send reviews to workers
	cancelled := false
feed:
	for _, review := range reviews {
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case reviewChan <- review:
		}
	}

	close(reviewChan)
	wg.Wait()

	// Labels already obtained are stored even when cancelled
	close(labelChan)
	writerWg.Wait()

	cancelProgress()
	progressWg.Wait()

	result.Processed = int(processed.Load())
	result.Labeled = int(labeled.Load())
	result.Positive = int(positive.Load())

	if cancelled || ctx.Err() != nil {
		return result, ctx.Err()
	}
	if writeErr != nil {
		return result, fmt.Errorf("failed to store labels: %w", writeErr)
	}

	util.SuccessLog("Sentiment labeling complete: %d processed, %d labeled (%d positive), %d errors",
		result.Processed, result.Labeled, result.Positive, len(result.Errors))

	return result, nil
}
