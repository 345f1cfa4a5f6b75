package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a log event. Levels are totally ordered:
// debug < info < warn < error.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// ParseLevel returns the Level for s, or an error if s is not one of
// the four known levels.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown log level %q", s)
}

// Severity returns the rank of the level for ordering comparisons.
// Unknown levels rank below debug.
func (l Level) Severity() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	}
	return -1
}

// LogEvent represents the canonical structure of a log event within the system.
// Events are immutable once created; corrections are new events.
type LogEvent struct {
	ID        string          `json:"event_id,omitempty"`
	Level     Level           `json:"level"`
	Message   string          `json:"message"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
}

// NewLogEvent constructs a LogEvent, stamping the current time and a
// fresh ID. An empty source falls back to fallbackSource.
func NewLogEvent(level Level, message, source, fallbackSource string, metadata json.RawMessage) LogEvent {
	if source == "" {
		source = fallbackSource
	}
	return LogEvent{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
}

// Validate checks the event against the ingestion contract. It returns
// a *ValidationError when the level is not one of the four known values
// or the message is empty.
func (e LogEvent) Validate() error {
	if _, err := ParseLevel(string(e.Level)); err != nil {
		return &ValidationError{Field: "level", Reason: fmt.Sprintf("must be one of debug, info, warn, error; got %q", e.Level)}
	}
	if e.Message == "" {
		return &ValidationError{Field: "message", Reason: "must not be empty"}
	}
	return nil
}
