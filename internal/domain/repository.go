package domain

import "context"

// LogStore defines the interface for durable log event persistence.
// This abstracts away the on-disk layout (rotating per-source files).
type LogStore interface {
	// Append durably writes a single event. Appends to the same
	// (source, day) file are serialized by the implementation.
	Append(ctx context.Context, event LogEvent) error

	// ReadAll returns every stored event for the given source, or for
	// all sources when source is empty. Corrupt lines are skipped.
	ReadAll(ctx context.Context, source string) ([]LogEvent, error)

	// ListSources returns the names of all sources with stored events.
	ListSources(ctx context.Context) ([]string, error)

	// Prune removes stored files older than the retention window.
	Prune(ctx context.Context) (removed int, err error)
}

// Broadcaster fans accepted events out to live subscribers. A slow
// subscriber must never stall the publisher.
type Broadcaster interface {
	// Publish emits the event to all-logs subscribers and to the room
	// named after the event's source.
	Publish(event LogEvent)

	// Alert emits a severity alert to every subscriber.
	Alert(alertType, message string)
}
