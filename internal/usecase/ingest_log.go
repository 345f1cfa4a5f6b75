package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/user/logpipe/internal/domain"
)

// IngestLogUseCase handles the business logic for accepting a log event:
// validate, enrich, persist, feed the alert window, and fan out live.
type IngestLogUseCase struct {
	store         domain.LogStore
	broadcaster   domain.Broadcaster
	alerts        *AlertMonitor
	logger        *slog.Logger
	defaultSource string
}

// NewIngestLogUseCase creates a new IngestLogUseCase. The broadcaster
// and alert monitor are optional; pass nil to disable fan-out/alerting.
func NewIngestLogUseCase(store domain.LogStore, broadcaster domain.Broadcaster, alerts *AlertMonitor, defaultSource string, logger *slog.Logger) *IngestLogUseCase {
	return &IngestLogUseCase{
		store:         store,
		broadcaster:   broadcaster,
		alerts:        alerts,
		logger:        logger,
		defaultSource: defaultSource,
	}
}

// Ingest validates and persists one event, then publishes it to live
// subscribers. The returned event carries any server-assigned fields.
// Validation failures return *domain.ValidationError; persistence
// failures return *domain.StorageError.
func (uc *IngestLogUseCase) Ingest(ctx context.Context, event *domain.LogEvent) error {
	if event.Source == "" {
		event.Source = uc.defaultSource
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if err := event.Validate(); err != nil {
		return err
	}

	if err := uc.store.Append(ctx, *event); err != nil {
		uc.logger.Error("failed to persist log event", "error", err, "event_id", event.ID)
		return err
	}

	if uc.alerts != nil {
		uc.alerts.Record(event.Level)
	}
	if uc.broadcaster != nil {
		uc.broadcaster.Publish(*event)
	}

	return nil
}
