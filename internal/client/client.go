package client

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/logpipe/internal/domain"
)

// Config controls a producer-side logging client. The zero value is
// not usable; ServerURL is required.
type Config struct {
	// ServerURL is the full ingestion endpoint, e.g.
	// "http://localhost:3010/api/logs".
	ServerURL string

	// Source identifies this producer on every event. Falls back to
	// "default" when empty.
	Source string

	// BufferCapacity bounds the local buffer; oldest entries are
	// evicted first when full. Defaults to 1000.
	BufferCapacity int

	// HTTPTimeout bounds each delivery attempt. Defaults to 5s.
	HTTPTimeout time.Duration

	// FlushInterval is the delivery loop period. Defaults to 2s.
	FlushInterval time.Duration

	// SpoolDir enables disk persistence of undelivered events across
	// restarts. Empty disables spooling.
	SpoolDir string

	// Logger receives the client's own diagnostics. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Client is a producer-side logging client. Log and Send never block on
// network I/O and never return an error to the caller: events are
// handed to the local buffer and delivered by a background loop.
//
// A Client is constructed explicitly and passed to call sites; there is
// no package-level shared instance.
type Client struct {
	cfg       Config
	buffer    *Buffer
	spool     *Spool
	transport *transport
	logger    *slog.Logger

	delivered atomic.Uint64
	dropped   atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Stats is a snapshot of the client's delivery counters.
type Stats struct {
	Pending   int
	Delivered uint64
	Dropped   uint64
	Evicted   uint64
	State     string
}

// New creates a Client, loads any spooled events from a previous run,
// and starts the background delivery loop.
func New(cfg Config) (*Client, error) {
	if cfg.Source == "" {
		cfg.Source = "default"
	}
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = 1000
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 5 * time.Second
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		cfg:       cfg,
		buffer:    NewBuffer(cfg.BufferCapacity, cfg.Logger),
		transport: newTransport(cfg.ServerURL, cfg.HTTPTimeout, cfg.Logger),
		logger:    cfg.Logger.With("component", "log_client", "source", cfg.Source),
	}

	if cfg.SpoolDir != "" {
		spool, err := NewSpool(cfg.SpoolDir, cfg.Logger)
		if err != nil {
			return nil, err
		}
		c.spool = spool

		events, err := spool.Load()
		if err != nil {
			c.logger.Error("failed to load spooled events, continuing without them", "error", err)
		}
		for _, event := range events {
			c.buffer.Enqueue(event)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx)

	return c, nil
}

// Log buffers a new event at the given level. Invalid events are
// dropped with a local warning; the call never fails.
func (c *Client) Log(level domain.Level, message string, metadata map[string]any) {
	var raw json.RawMessage
	if len(metadata) > 0 {
		data, err := json.Marshal(metadata)
		if err != nil {
			c.logger.Warn("failed to marshal metadata, logging without it", "error", err)
		} else {
			raw = data
		}
	}
	c.Send(domain.NewLogEvent(level, message, c.cfg.Source, "default", raw))
}

// Debug logs at debug level.
func (c *Client) Debug(message string, metadata map[string]any) {
	c.Log(domain.LevelDebug, message, metadata)
}

// Info logs at info level.
func (c *Client) Info(message string, metadata map[string]any) {
	c.Log(domain.LevelInfo, message, metadata)
}

// Warn logs at warn level.
func (c *Client) Warn(message string, metadata map[string]any) {
	c.Log(domain.LevelWarn, message, metadata)
}

// Error logs at error level.
func (c *Client) Error(message string, metadata map[string]any) {
	c.Log(domain.LevelError, message, metadata)
}

// Send buffers an already-constructed event. It never blocks on the
// network and never surfaces an error to the caller.
func (c *Client) Send(event domain.LogEvent) {
	if err := event.Validate(); err != nil {
		c.dropped.Add(1)
		c.logger.Warn("dropping invalid log event", "error", err)
		return
	}
	if event.Source == "" {
		event.Source = c.cfg.Source
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	c.buffer.Enqueue(event)
}

// Flush attempts immediate delivery of everything currently buffered.
func (c *Client) Flush(ctx context.Context) {
	c.flushOnce(ctx)
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() Stats {
	return Stats{
		Pending:   c.buffer.Len(),
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
		Evicted:   c.buffer.Evicted(),
		State:     c.transport.State().String(),
	}
}

// Close stops the delivery loop, makes a final delivery attempt, and
// spools whatever is still undelivered to disk (when spooling is
// configured).
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.HTTPTimeout)
		defer cancel()
		c.flushOnce(ctx)

		if c.spool != nil {
			remaining := c.buffer.Drain()
			if len(remaining) > 0 {
				events := make([]domain.LogEvent, len(remaining))
				for i, entry := range remaining {
					events[i] = entry.Event
				}
				err = c.spool.Persist(events)
			}
			// Replayed segments are only dropped once their events are
			// either delivered or re-persisted above; on a persist
			// failure they stay as the durable copy.
			if err == nil {
				c.spool.Clear()
			}
		} else if pending := c.buffer.Len(); pending > 0 {
			c.logger.Warn("closing with undelivered events and no spool configured", "pending", pending)
		}
	})
	return err
}

// run is the background delivery loop. While disconnected it honors
// the transport's backoff instead of hammering the server every tick.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	var lastAttempt time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.transport.State() == StateDisconnected &&
				time.Since(lastAttempt) < c.transport.retryAfter() {
				continue
			}
			if c.buffer.Len() == 0 {
				continue
			}
			lastAttempt = time.Now()
			c.flushOnce(ctx)
		}
	}
}

// flushOnce drains the buffer and delivers entries in order. A
// transient failure stops the cycle so ordering is preserved for the
// retry; a permanent rejection drops the entry with a warning.
func (c *Client) flushOnce(ctx context.Context) {
	entries := c.buffer.Drain()
	if len(entries) == 0 {
		return
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}

		err := c.transport.Deliver(ctx, entry.Event)
		if err == nil {
			c.buffer.Acknowledge(entry.SeqID)
			c.delivered.Add(1)
			continue
		}

		var terr *domain.TransportError
		if errors.As(err, &terr) && !terr.Retryable() {
			// The server rejected the event as malformed; retrying the
			// same payload cannot succeed.
			c.buffer.Acknowledge(entry.SeqID)
			c.dropped.Add(1)
			c.logger.Warn("server rejected event, dropping", "event_id", entry.Event.ID, "error", err)
			continue
		}

		c.buffer.MarkFailed(entry.SeqID)
		c.logger.Debug("delivery attempt failed, entry stays buffered",
			"event_id", entry.Event.ID, "pending", c.buffer.Len(), "error", err)
		return
	}

	// Everything replayed from the spool is now delivered; the segments
	// on disk are no longer needed.
	if c.spool != nil && c.buffer.Len() == 0 {
		c.spool.Clear()
	}
}
