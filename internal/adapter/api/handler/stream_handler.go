package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/user/logpipe/internal/adapter/metrics"
	"github.com/user/logpipe/internal/domain"
)

const clientBufferSize = 64

// StreamBroker implements the real-time fan-out channel over SSE. Every
// connection subscribes to the implicit all-logs feed; rooms named
// after a source scope an additional feed. Room control is HTTP
// (join/leave keyed by the connection id announced on connect), since
// the stream itself is one-directional.
type StreamBroker struct {
	logger  *slog.Logger
	metrics *metrics.ServerMetrics

	mu      sync.RWMutex
	clients map[string]*streamClient
}

type streamClient struct {
	id    string
	ch    chan sseMessage
	rooms map[string]struct{}
}

type sseMessage struct {
	event string
	data  []byte
}

// NewStreamBroker creates a StreamBroker.
func NewStreamBroker(logger *slog.Logger, m *metrics.ServerMetrics) *StreamBroker {
	return &StreamBroker{
		logger:  logger.With("component", "stream_broker"),
		metrics: m,
		clients: make(map[string]*streamClient),
	}
}

// ServeHTTP handles GET /api/logs/stream. An optional ?source= query
// parameter joins that room immediately. The first event on the stream
// is `connected` carrying the connection id.
func (b *StreamBroker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &streamClient{
		id:    uuid.NewString(),
		ch:    make(chan sseMessage, clientBufferSize),
		rooms: make(map[string]struct{}),
	}
	if source := r.URL.Query().Get("source"); source != "" {
		client.rooms[source] = struct{}{}
	}

	b.addClient(client)
	defer b.removeClient(client)

	writeSSE(w, "connected", mustJSON(map[string]string{"connectionId": client.id}))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.ch:
			if !ok {
				return
			}
			writeSSE(w, msg.event, msg.data)
			flusher.Flush()
		}
	}
}

// JoinRoom handles POST /api/logs/stream/{id}/join?source=S.
func (b *StreamBroker) JoinRoom(w http.ResponseWriter, r *http.Request) {
	b.updateRooms(w, r, true)
}

// LeaveRoom handles POST /api/logs/stream/{id}/leave?source=S.
func (b *StreamBroker) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	b.updateRooms(w, r, false)
}

func (b *StreamBroker) updateRooms(w http.ResponseWriter, r *http.Request, join bool) {
	connID := r.PathValue("id")
	source := r.URL.Query().Get("source")
	if source == "" {
		respondError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}

	b.mu.Lock()
	client, ok := b.clients[connID]
	if ok {
		if join {
			client.rooms[source] = struct{}{}
		} else {
			delete(client.rooms, source)
		}
	}
	b.mu.Unlock()

	if !ok {
		respondError(w, http.StatusNotFound, "unknown connection id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"connectionId": connID, "source": source})
}

// Publish emits the event to all subscribers as `log`, and as
// `source-log` to subscribers of the event's source room. A slow
// subscriber's full channel drops the message rather than stalling
// ingestion.
func (b *StreamBroker) Publish(event domain.LogEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event for broadcast", "error", err)
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, client := range b.clients {
		client.send(sseMessage{event: "log", data: data})
		if _, inRoom := client.rooms[event.Source]; inRoom {
			client.send(sseMessage{event: "source-log", data: data})
		}
	}
}

// Alert emits an alert to every subscriber.
func (b *StreamBroker) Alert(alertType, message string) {
	data := mustJSON(map[string]string{"type": alertType, "message": message})

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.metrics != nil {
		b.metrics.AlertsTotal.Inc()
	}
	for _, client := range b.clients {
		client.send(sseMessage{event: "alert", data: data})
	}
}

// Subscribers returns the live connection count.
func (b *StreamBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (c *streamClient) send(msg sseMessage) {
	select {
	case c.ch <- msg:
	default:
		// Slow subscriber; drop rather than block the publisher.
	}
}

func (b *StreamBroker) addClient(client *streamClient) {
	b.mu.Lock()
	b.clients[client.id] = client
	count := len(b.clients)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.Subscribers.Set(float64(count))
	}
	b.logger.Info("stream client connected", "connection_id", client.id, "online", count)
	b.broadcastOnline(count)
}

func (b *StreamBroker) removeClient(client *streamClient) {
	b.mu.Lock()
	if _, ok := b.clients[client.id]; ok {
		delete(b.clients, client.id)
		close(client.ch)
	}
	count := len(b.clients)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.Subscribers.Set(float64(count))
	}
	b.logger.Info("stream client disconnected", "connection_id", client.id, "online", count)
	b.broadcastOnline(count)
}

func (b *StreamBroker) broadcastOnline(count int) {
	data := mustJSON(map[string]int{"count": count})

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, client := range b.clients {
		client.send(sseMessage{event: "online-users", data: data})
	}
}

func writeSSE(w http.ResponseWriter, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
