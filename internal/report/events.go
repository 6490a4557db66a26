package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventImport    EventType = "import"
	EventLabel     EventType = "label"
	EventAggregate EventType = "aggregate"
	EventScore     EventType = "score"
	EventRecommend EventType = "recommend"
	EventPublish   EventType = "publish"
	EventSkip      EventType = "skip"
	EventError     EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// levelPriority maps event levels to numeric priorities for comparison
var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to LevelInfo
func ParseLevel(name string) EventLevel {
	level := EventLevel(name)
	if _, ok := levelPriority[level]; ok {
		return level
	}
	return LevelInfo
}

// Event represents a single event in the pipeline
type Event struct {
	Timestamp   time.Time         `json:"ts"`
	Level       EventLevel        `json:"level"`
	Event       EventType         `json:"event"`
	RunID       string            `json:"run_id,omitempty"`
	MovieID     string            `json:"movie_id,omitempty"`
	ReviewID    int64             `json:"review_id,omitempty"`
	Source      string            `json:"source,omitempty"` // input file or record position
	Score       *float64          `json:"score,omitempty"`
	Provisional *float64          `json:"provisional_score,omitempty"`
	Count       int               `json:"count,omitempty"`
	Action      string            `json:"action,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Duration    int64             `json:"duration_ms,omitempty"` // in milliseconds
	Error       string            `json:"error,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// EventLogger writes events to a JSONL file
type EventLogger struct {
	file     *os.File
	encoder  *json.Encoder
	mu       sync.Mutex
	path     string
	minLevel EventLevel
}

// NewEventLogger creates a new event logger with a minimum log level
// minLevel determines which events are written (e.g., LevelInfo skips LevelDebug)
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("events-%s.jsonl", timestamp)
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		path:     path,
		minLevel: minLevel,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil // Silently ignore if logger not initialized
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	return nil
}

// LogImport logs the outcome of importing one input file
func (l *EventLogger) LogImport(source, kind string, imported, rejected int) error {
	level := LevelInfo
	if rejected > 0 {
		level = LevelWarning
	}

	return l.Log(&Event{
		Level:  level,
		Event:  EventImport,
		Source: source,
		Count:  imported,
		Extra: map[string]string{
			"kind":     kind,
			"rejected": fmt.Sprintf("%d", rejected),
		},
	})
}

// LogRejected logs an input record excluded as malformed or incomplete
func (l *EventLogger) LogRejected(event EventType, source, movieID string, err error) error {
	return l.Log(&Event{
		Level:   LevelWarning,
		Event:   EventSkip,
		Source:  source,
		MovieID: movieID,
		Action:  string(event),
		Error:   err.Error(),
	})
}

// LogLabel logs a classifier result for one review
func (l *EventLogger) LogLabel(reviewID int64, movieID string, label int, err error) error {
	if err != nil {
		return l.Log(&Event{
			Level:    LevelError,
			Event:    EventLabel,
			ReviewID: reviewID,
			MovieID:  movieID,
			Error:    err.Error(),
		})
	}

	return l.Log(&Event{
		Level:    LevelDebug,
		Event:    EventLabel,
		ReviewID: reviewID,
		MovieID:  movieID,
		Extra: map[string]string{
			"label": fmt.Sprintf("%d", label),
		},
	})
}

// LogAggregate logs the sentiment aggregation summary of a run
func (l *EventLogger) LogAggregate(runID string, movies, rejected int) error {
	return l.Log(&Event{
		Level: LevelInfo,
		Event: EventAggregate,
		RunID: runID,
		Count: movies,
		Extra: map[string]string{
			"rejected": fmt.Sprintf("%d", rejected),
		},
	})
}

// LogScore logs both scores computed for a movie; absent scores are logged without a value
func (l *EventLogger) LogScore(runID, movieID string, underrated, provisional *float64) error {
	return l.Log(&Event{
		Level:       LevelDebug,
		Event:       EventScore,
		RunID:       runID,
		MovieID:     movieID,
		Score:       underrated,
		Provisional: provisional,
	})
}

// LogScoreRejected logs a movie left unscored because its inputs are malformed
func (l *EventLogger) LogScoreRejected(runID, movieID string, err error) error {
	return l.Log(&Event{
		Level:   LevelWarning,
		Event:   EventSkip,
		RunID:   runID,
		MovieID: movieID,
		Action:  string(EventScore),
		Error:   err.Error(),
	})
}

// LogRecommend logs the recommendation summary of a run
func (l *EventLogger) LogRecommend(runID string, movies, edges int, duration time.Duration) error {
	return l.Log(&Event{
		Level:    LevelInfo,
		Event:    EventRecommend,
		RunID:    runID,
		Count:    edges,
		Duration: duration.Milliseconds(),
		Extra: map[string]string{
			"movies": fmt.Sprintf("%d", movies),
		},
	})
}

// LogPublish logs the outcome of publishing a run
func (l *EventLogger) LogPublish(runID string, scoreRows, edgeRows int, duration time.Duration, err error) error {
	level := LevelInfo
	errMsg := ""
	if err != nil {
		level = LevelError
		errMsg = err.Error()
	}

	return l.Log(&Event{
		Level:    level,
		Event:    EventPublish,
		RunID:    runID,
		Count:    scoreRows,
		Duration: duration.Milliseconds(),
		Error:    errMsg,
		Extra: map[string]string{
			"recommendation_edges": fmt.Sprintf("%d", edgeRows),
		},
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(event EventType, source string, err error) error {
	return l.Log(&Event{
		Level:  LevelError,
		Event:  event,
		Source: source,
		Error:  err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
