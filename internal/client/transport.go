package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/user/logpipe/internal/domain"
)

// ConnState is the transport's view of the connection to the server.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// transport delivers single events to the ingestion endpoint over HTTP
// with a bounded timeout, tracking connection state so the delivery
// loop can back off while the server is unreachable.
type transport struct {
	url     string
	client  *http.Client
	logger  *slog.Logger
	state   atomic.Int32
	backoff backoff
}

type backoff struct {
	base    time.Duration
	max     time.Duration
	current atomic.Int64 // nanoseconds
}

func newTransport(url string, timeout time.Duration, logger *slog.Logger) *transport {
	t := &transport{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "transport"),
	}
	t.backoff.base = 500 * time.Millisecond
	t.backoff.max = 30 * time.Second
	t.backoff.current.Store(int64(t.backoff.base))
	return t
}

// State returns the current connection state.
func (t *transport) State() ConnState {
	return ConnState(t.state.Load())
}

// Deliver POSTs one event to the ingestion endpoint. A nil return means
// the server confirmed the event (2xx). Failures are returned as
// *domain.TransportError; network errors and 5xx are retryable, 4xx is
// not.
func (t *transport) Deliver(ctx context.Context, event domain.LogEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		// Marshal failures are permanent; report as non-retryable.
		return &domain.TransportError{Op: "encode", StatusCode: http.StatusBadRequest, Err: err}
	}

	if t.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		t.logger.Debug("attempting to reconnect", "url", t.url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return &domain.TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.markDisconnected(err)
		return &domain.TransportError{Op: "post", Err: err}
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		terr := &domain.TransportError{Op: "post", StatusCode: resp.StatusCode}
		if terr.Retryable() {
			t.markDisconnected(terr)
		}
		return terr
	}

	t.markConnected()
	return nil
}

func (t *transport) markDisconnected(cause error) {
	if t.state.Swap(int32(StateDisconnected)) == int32(StateConnected) {
		t.logger.Warn("connection to log server lost", "url", t.url, "error", cause)
	}
	// Exponential backoff, capped.
	next := time.Duration(t.backoff.current.Load()) * 2
	if next > t.backoff.max {
		next = t.backoff.max
	}
	t.backoff.current.Store(int64(next))
}

func (t *transport) markConnected() {
	if t.state.Swap(int32(StateConnected)) != int32(StateConnected) {
		t.logger.Info("connected to log server", "url", t.url)
	}
	t.backoff.current.Store(int64(t.backoff.base))
}

// retryAfter returns how long the delivery loop should wait before the
// next attempt while disconnected.
func (t *transport) retryAfter() time.Duration {
	return time.Duration(t.backoff.current.Load())
}

func (t *transport) String() string {
	return fmt.Sprintf("transport(%s, %s)", t.url, t.State())
}
