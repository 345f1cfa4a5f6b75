package client

import (
	"log/slog"
	"sync"

	"github.com/user/logpipe/internal/domain"
)

// EntryState tracks the delivery lifecycle of a buffered entry.
type EntryState string

const (
	StatePending  EntryState = "pending"
	StateInFlight EntryState = "in-flight"
	StateFailed   EntryState = "failed"
)

// Entry is a LogEvent plus its delivery state inside the buffer.
type Entry struct {
	SeqID uint64
	Event domain.LogEvent
	State EntryState
}

// Buffer is the local durable buffer: an in-process FIFO of entries the
// transport could not yet confirm as delivered. When the capacity
// ceiling is reached the oldest entries are evicted first; that is the
// one place loss is an explicit trade-off rather than a bug.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	nextSeq  uint64
	entries  []Entry
	evicted  uint64
	logger   *slog.Logger
}

// NewBuffer creates a buffer holding at most capacity entries.
func NewBuffer(capacity int, logger *slog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{
		capacity: capacity,
		logger:   logger.With("component", "buffer"),
	}
}

// Enqueue appends an event to the queue, evicting the oldest entry if
// the buffer is full. Safe for concurrent use.
func (b *Buffer) Enqueue(event domain.LogEvent) Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) >= b.capacity {
		dropped := b.entries[0]
		b.entries = b.entries[1:]
		b.evicted++
		b.logger.Warn("buffer full, evicting oldest entry",
			"seq_id", dropped.SeqID, "event_id", dropped.Event.ID, "evicted_total", b.evicted)
	}

	b.nextSeq++
	entry := Entry{SeqID: b.nextSeq, Event: event, State: StatePending}
	b.entries = append(b.entries, entry)
	return entry
}

// Drain returns a snapshot of all current entries in enqueue order
// without removing them, so a failed delivery attempt can retry the
// same batch.
func (b *Buffer) Drain() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Acknowledge removes entries whose delivery was confirmed.
func (b *Buffer) Acknowledge(seqIDs ...uint64) {
	if len(seqIDs) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acked := make(map[uint64]struct{}, len(seqIDs))
	for _, id := range seqIDs {
		acked[id] = struct{}{}
	}

	kept := b.entries[:0]
	for _, e := range b.entries {
		if _, ok := acked[e.SeqID]; !ok {
			kept = append(kept, e)
		}
	}
	b.entries = kept
}

// MarkFailed flags entries after a failed delivery attempt. They stay
// in the queue for the next cycle.
func (b *Buffer) MarkFailed(seqIDs ...uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := make(map[uint64]struct{}, len(seqIDs))
	for _, id := range seqIDs {
		failed[id] = struct{}{}
	}
	for i := range b.entries {
		if _, ok := failed[b.entries[i].SeqID]; ok {
			b.entries[i].State = StateFailed
		}
	}
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Evicted returns how many entries have been dropped by the capacity
// ceiling since the buffer was created.
func (b *Buffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}
