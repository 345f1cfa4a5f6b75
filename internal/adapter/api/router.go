package api

import (
	"log/slog"
	"net/http"

	"github.com/user/logpipe/internal/adapter/api/handler"
	"github.com/user/logpipe/internal/adapter/api/middleware"
	"github.com/user/logpipe/internal/pkg/config"
)

// NewRouter creates and configures the main HTTP router for the log server.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	ingestHandler *handler.IngestHandler,
	queryHandler *handler.QueryHandler,
	broker *handler.StreamBroker,
) http.Handler {
	mux := http.NewServeMux()

	rateLimit := middleware.RateLimit(cfg.IngestRPS, logger)

	// Ingestion
	mux.Handle("POST /api/logs", rateLimit(ingestHandler))

	// Historical queries
	mux.HandleFunc("GET /api/logs", queryHandler.Query)
	mux.HandleFunc("GET /api/logs/{source}", queryHandler.Query)
	mux.HandleFunc("GET /api/logs/export", queryHandler.Export)
	mux.HandleFunc("GET /api/logs/export/{source}", queryHandler.Export)
	mux.HandleFunc("GET /api/logs/sources", queryHandler.Sources)
	mux.HandleFunc("GET /api/logs/stats", queryHandler.Stats)

	// Real-time channel
	mux.Handle("GET /api/logs/stream", broker)
	mux.HandleFunc("POST /api/logs/stream/{id}/join", broker.JoinRoom)
	mux.HandleFunc("POST /api/logs/stream/{id}/leave", broker.LeaveRoom)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return middleware.Logging(logger)(mux)
}
