package filestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/logpipe/internal/adapter/metrics"
	"github.com/user/logpipe/internal/domain"
)

const (
	levelDir = "_levels"
	filePerm = 0644
	dirPerm  = 0755
)

// Store implements domain.LogStore as a tree of newline-delimited JSON
// files: one file per (source, calendar day), plus level-partitioned
// error and combined files under a reserved directory. Files exceeding
// the size threshold are rotated by renaming with a timestamp suffix.
type Store struct {
	root        string
	maxFileSize int64
	retention   time.Duration
	logger      *slog.Logger
	metrics     *metrics.ServerMetrics

	mu      sync.Mutex
	writers map[string]*fileWriter
}

type fileWriter struct {
	mu   sync.Mutex
	file *os.File
	size int64
	path string
}

// New creates a Store rooted at dir, creating it if needed.
func New(dir string, maxFileSize int64, retention time.Duration, logger *slog.Logger, m *metrics.ServerMetrics) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	return &Store{
		root:        dir,
		maxFileSize: maxFileSize,
		retention:   retention,
		logger:      logger.With("component", "filestore"),
		metrics:     m,
		writers:     make(map[string]*fileWriter),
	}, nil
}

// Append writes one event to its (source, day) file, to the combined
// level file, and to the error level file for error events. Appends to
// a given file are serialized; different files may be written
// concurrently.
func (s *Store) Append(ctx context.Context, event domain.LogEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal log event: %w", err)
	}
	data = append(data, '\n')

	day := event.Timestamp.UTC().Format("2006-01-02")

	paths := []string{
		filepath.Join(s.root, sanitizeSource(event.Source), day+".log"),
		filepath.Join(s.root, levelDir, "combined-"+day+".log"),
	}
	if event.Level == domain.LevelError {
		paths = append(paths, filepath.Join(s.root, levelDir, "error-"+day+".log"))
	}

	for _, path := range paths {
		if err := s.appendLine(path, data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendLine(path string, data []byte) error {
	w, err := s.writer(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			return &domain.StorageError{Op: "open", Path: path, Err: err}
		}
	}

	if w.size+int64(len(data)) > s.maxFileSize && w.size > 0 {
		if err := w.rotate(); err != nil {
			return &domain.StorageError{Op: "rotate", Path: path, Err: err}
		}
		if s.metrics != nil {
			s.metrics.RotationsTotal.Inc()
		}
		s.logger.Info("rotated log file", "path", path)
	}

	n, err := w.file.Write(data)
	if err != nil {
		return &domain.StorageError{Op: "append", Path: path, Err: err}
	}
	w.size += int64(n)
	return nil
}

func (s *Store) writer(path string) (*fileWriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.writers[path]; ok {
		return w, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, &domain.StorageError{Op: "mkdir", Path: path, Err: err}
	}

	w := &fileWriter{path: path}
	s.writers[path] = w
	return w, nil
}

func (w *fileWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}
	w.file = f
	w.size = stat.Size()
	return nil
}

// rotate renames the active file with a timestamp suffix and starts a
// fresh one. Prior data is never overwritten.
func (w *fileWriter) rotate() error {
	if err := w.file.Sync(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	rotated := fmt.Sprintf("%s.%d", w.path, time.Now().UnixNano())
	if err := os.Rename(w.path, rotated); err != nil {
		return err
	}
	return w.open()
}

// ReadAll returns every stored event for source, or for all sources
// when source is empty. Lines that fail to parse are skipped with a
// warning; a corrupt line never aborts the read.
func (s *Store) ReadAll(ctx context.Context, source string) ([]domain.LogEvent, error) {
	var sources []string
	if source != "" {
		sources = []string{sanitizeSource(source)}
	} else {
		var err error
		sources, err = s.ListSources(ctx)
		if err != nil {
			return nil, err
		}
	}

	var events []domain.LogEvent
	for _, src := range sources {
		dir := filepath.Join(s.root, src)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &domain.StorageError{Op: "readdir", Path: dir, Err: err}
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			evs, err := s.readFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, err
			}
			events = append(events, evs...)
		}
	}
	return events, nil
}

func (s *Store) readFile(path string) ([]domain.LogEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var events []domain.LogEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event domain.LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			perr := &domain.ParseError{Path: path, Line: string(line), Err: err}
			s.logger.Warn("skipping corrupt log line", "error", perr)
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.StorageError{Op: "scan", Path: path, Err: err}
	}
	return events, nil
}

// ListSources returns the top-level source directory names, excluding
// the reserved level-partition directory.
func (s *Store) ListSources(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &domain.StorageError{Op: "readdir", Path: s.root, Err: err}
	}

	var sources []string
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != levelDir {
			sources = append(sources, entry.Name())
		}
	}
	return sources, nil
}

// Prune removes files whose last-modified time is older than the
// retention window. Deletion is permanent.
func (s *Store) Prune(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.retention)
	removed := 0

	err := filepath.WalkDir(s.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			s.dropWriter(path)
			if err := os.Remove(path); err != nil {
				s.logger.Error("failed to remove expired log file", "path", path, "error", err)
				return nil
			}
			removed++
			s.logger.Info("removed expired log file", "path", path, "mod_time", info.ModTime())
		}
		return nil
	})
	if err != nil {
		return removed, &domain.StorageError{Op: "prune", Path: s.root, Err: err}
	}

	if s.metrics != nil && removed > 0 {
		s.metrics.FilesPrunedTotal.Add(float64(removed))
	}
	return removed, nil
}

// StartRetentionSweep runs Prune on the given interval until ctx is
// cancelled. A sweep also runs immediately at startup.
func (s *Store) StartRetentionSweep(ctx context.Context, interval time.Duration) {
	sweep := func() {
		if removed, err := s.Prune(ctx); err != nil {
			s.logger.Error("retention sweep failed", "error", err)
		} else if removed > 0 {
			s.logger.Info("retention sweep completed", "removed", removed)
		}
	}

	sweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func (s *Store) dropWriter(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.writers[path]; ok {
		w.mu.Lock()
		if w.file != nil {
			w.file.Close()
			w.file = nil
		}
		w.mu.Unlock()
		delete(s.writers, path)
	}
}

// Close flushes and closes all open file handles.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, w := range s.writers {
		w.mu.Lock()
		if w.file != nil {
			if err := w.file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			w.file = nil
		}
		w.mu.Unlock()
	}
	return firstErr
}

// sanitizeSource keeps source-derived paths inside the store root.
func sanitizeSource(source string) string {
	source = strings.ReplaceAll(source, string(os.PathSeparator), "_")
	source = strings.ReplaceAll(source, "..", "_")
	if source == "" || source == levelDir {
		source = "unknown"
	}
	return source
}
