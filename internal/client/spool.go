package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/logpipe/internal/domain"
)

const (
	spoolPrefix   = "spool-"
	spoolFilePerm = 0644
)

// Spool persists undelivered events to disk so a process restart does
// not lose entries that were still pending when the process exited.
// Events are written as one JSON record per line in timestamped
// segment files.
type Spool struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	replayed []string
}

// NewSpool creates a Spool rooted at dir, creating the directory if
// needed.
func NewSpool(dir string, logger *slog.Logger) (*Spool, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory %s: %w", dir, err)
	}
	return &Spool{
		dir:    dir,
		logger: logger.With("component", "spool"),
	}, nil
}

// Persist writes the given events to a new segment file. It is called
// with the buffer's pending tail on shutdown and explicit flushes.
func (s *Spool) Persist(events []domain.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s%d.ndjson", spoolPrefix, time.Now().UnixNano()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, spoolFilePerm)
	if err != nil {
		return fmt.Errorf("failed to create spool segment %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			s.logger.Warn("failed to marshal event for spool, skipping", "event_id", event.ID, "error", err)
			continue
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write spool segment %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush spool segment %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync spool segment %s: %w", path, err)
	}

	s.logger.Info("spooled undelivered events to disk", "path", path, "count", len(events))
	return nil
}

// Load reads every spooled event in segment order; the caller
// re-enqueues the events into the in-memory buffer. Segments stay on
// disk until Clear, so a crash between load and delivery replays them
// again instead of losing them. Corrupt lines are skipped, never
// fatal.
func (s *Spool) Load() ([]domain.LogEvent, error) {
	segments, err := s.segments()
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, nil
	}

	var events []domain.LogEvent
	for _, path := range segments {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open spool segment %s: %w", path, err)
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var event domain.LogEvent
			if err := json.Unmarshal(line, &event); err != nil {
				s.logger.Warn("skipping corrupt spool line", "path", path, "error", err)
				continue
			}
			events = append(events, event)
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("error scanning spool segment %s: %w", path, err)
		}
	}

	s.mu.Lock()
	s.replayed = append(s.replayed, segments...)
	s.mu.Unlock()

	s.logger.Info("loaded spooled events from disk", "segment_count", len(segments), "event_count", len(events))
	return events, nil
}

// Clear removes the segments a previous Load replayed. It is called
// once the replayed events are delivered or re-persisted elsewhere.
func (s *Spool) Clear() {
	s.mu.Lock()
	replayed := s.replayed
	s.replayed = nil
	s.mu.Unlock()

	for _, path := range replayed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("failed to remove replayed spool segment", "path", path, "error", err)
		}
	}
}

func (s *Spool) segments() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read spool directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), spoolPrefix) {
			segments = append(segments, filepath.Join(s.dir, entry.Name()))
		}
	}
	sort.Strings(segments)
	return segments, nil
}
