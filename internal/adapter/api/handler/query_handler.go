package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/logpipe/internal/domain"
	"github.com/user/logpipe/internal/usecase"
)

// QueryHandler serves historical queries, exports, source listing and
// aggregate stats over the rotating file store.
type QueryHandler struct {
	useCase *usecase.QueryLogsUseCase
	logger  *slog.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(uc *usecase.QueryLogsUseCase, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{useCase: uc, logger: logger}
}

func filterFromRequest(r *http.Request) usecase.QueryFilter {
	q := r.URL.Query()
	return usecase.QueryFilter{
		Source:    r.PathValue("source"),
		Level:     domain.Level(q.Get("level")),
		Search:    q.Get("search"),
		TimeRange: q.Get("timeRange"),
	}
}

// Query handles GET /api/logs and GET /api/logs/{source}.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	events, err := h.useCase.Query(r.Context(), filterFromRequest(r))
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	if events == nil {
		events = []domain.LogEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}

// Export handles GET /api/logs/export and /api/logs/export/{source}:
// the same filtering, framed as a file download.
func (h *QueryHandler) Export(w http.ResponseWriter, r *http.Request) {
	events, err := h.useCase.Query(r.Context(), filterFromRequest(r))
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	if events == nil {
		events = []domain.LogEvent{}
	}

	filename := fmt.Sprintf("logs-export-%s.json", time.Now().UTC().Format("2006-01-02T15-04-05"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	json.NewEncoder(w).Encode(events)
}

// Sources handles GET /api/logs/sources.
func (h *QueryHandler) Sources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.useCase.Sources(r.Context())
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	if sources == nil {
		sources = []string{}
	}
	respondJSON(w, http.StatusOK, sources)
}

// Stats handles GET /api/logs/stats.
func (h *QueryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.useCase.Stats(r.Context())
	if err != nil {
		h.respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *QueryHandler) respondQueryError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		respondError(w, http.StatusBadRequest, verr.Error())
		return
	}
	h.logger.Error("query failed", "error", err)
	respondError(w, http.StatusInternalServerError, "query failed")
}
