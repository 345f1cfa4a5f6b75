package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/logpipe/internal/adapter/metrics"
	"github.com/user/logpipe/internal/domain"
)

// LogIngester is the use-case surface the ingest handler needs.
type LogIngester interface {
	Ingest(ctx context.Context, event *domain.LogEvent) error
}

// IngestHandler handles HTTP requests for log ingestion.
type IngestHandler struct {
	useCase      LogIngester
	logger       *slog.Logger
	metrics      *metrics.ServerMetrics
	maxEventSize int64
}

// NewIngestHandler creates a new IngestHandler.
func NewIngestHandler(uc LogIngester, logger *slog.Logger, m *metrics.ServerMetrics, maxEventSize int64) *IngestHandler {
	return &IngestHandler{
		useCase:      uc,
		logger:       logger,
		metrics:      m,
		maxEventSize: maxEventSize,
	}
}

// ServeHTTP accepts one LogEvent as a JSON body. On success it returns
// 200 with the stored event (including server-assigned fields); on
// validation failure 400; on storage failure 500, in which case the
// producer keeps the event buffered and retries.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxEventSize)

	var event domain.LogEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.count("error_size")
			respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		h.count("error_parse")
		respondError(w, http.StatusBadRequest, "failed to decode JSON body")
		return
	}

	if err := h.useCase.Ingest(r.Context(), &event); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			h.count("error_validation")
			respondError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.count("error_storage")
		h.logger.Error("failed to ingest event", "error", err, "event_id", event.ID)
		respondError(w, http.StatusInternalServerError, "failed to store event")
		return
	}

	h.count("accepted")
	if h.metrics != nil {
		h.metrics.BytesTotal.Add(float64(len(event.Message) + len(event.Metadata)))
	}
	respondJSON(w, http.StatusOK, event)
}

func (h *IngestHandler) count(status string) {
	if h.metrics != nil {
		h.metrics.EventsTotal.WithLabelValues(status).Inc()
	}
}
