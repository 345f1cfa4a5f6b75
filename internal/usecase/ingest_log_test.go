package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/logpipe/internal/domain"
	"github.com/user/logpipe/internal/domain/mocks"
)

func TestIngestLogUseCase_Ingest(t *testing.T) {
	t.Run("successful ingestion", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		broadcaster := &mocks.MockBroadcaster{}
		uc := NewIngestLogUseCase(store, broadcaster, nil, "default", testLogger())

		event := &domain.LogEvent{Level: domain.LevelInfo, Message: "test message", Source: "svc-a"}
		if err := uc.Ingest(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if event.ID == "" {
			t.Error("expected event ID to be generated")
		}
		if event.Timestamp.IsZero() {
			t.Error("expected timestamp to be stamped")
		}
		if len(store.Events()) != 1 {
			t.Fatalf("expected 1 event persisted, got %d", len(store.Events()))
		}
		if len(broadcaster.Published) != 1 {
			t.Errorf("expected 1 event broadcast, got %d", len(broadcaster.Published))
		}
	})

	t.Run("defaults empty source", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewIngestLogUseCase(store, nil, nil, "fallback", testLogger())

		event := &domain.LogEvent{Level: domain.LevelInfo, Message: "no source"}
		if err := uc.Ingest(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if event.Source != "fallback" {
			t.Errorf("expected fallback source, got %q", event.Source)
		}
	})

	t.Run("keeps producer timestamp", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewIngestLogUseCase(store, nil, nil, "default", testLogger())

		stamped := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		event := &domain.LogEvent{Level: domain.LevelInfo, Message: "x", Timestamp: stamped}
		if err := uc.Ingest(context.Background(), event); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !event.Timestamp.Equal(stamped) {
			t.Errorf("producer timestamp must not be overwritten: got %v", event.Timestamp)
		}
	})

	t.Run("rejects invalid event", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		uc := NewIngestLogUseCase(store, nil, nil, "default", testLogger())

		event := &domain.LogEvent{Level: "fatal", Message: "bad"}
		err := uc.Ingest(context.Background(), event)

		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %v", err)
		}
		if len(store.Events()) != 0 {
			t.Error("invalid event must not be persisted")
		}
	})

	t.Run("storage error propagates", func(t *testing.T) {
		store := &mocks.MockLogStore{AppendErr: &domain.StorageError{Op: "append", Path: "x", Err: errors.New("disk full")}}
		broadcaster := &mocks.MockBroadcaster{}
		uc := NewIngestLogUseCase(store, broadcaster, nil, "default", testLogger())

		event := &domain.LogEvent{Level: domain.LevelError, Message: "boom"}
		err := uc.Ingest(context.Background(), event)

		var serr *domain.StorageError
		if !errors.As(err, &serr) {
			t.Fatalf("expected *StorageError, got %v", err)
		}
		if len(broadcaster.Published) != 0 {
			t.Error("unpersisted event must not be broadcast")
		}
	})

	t.Run("feeds the alert monitor", func(t *testing.T) {
		store := &mocks.MockLogStore{}
		broadcaster := &mocks.MockBroadcaster{}
		alerts := NewAlertMonitor(AlertThresholds{Errors: 2, Window: 5 * time.Minute}, broadcaster, testLogger())
		uc := NewIngestLogUseCase(store, broadcaster, alerts, "default", testLogger())

		// Old event timestamps, as in a backlog replayed after an
		// outage: the window counts arrivals, so these still alert.
		stale := time.Now().UTC().Add(-48 * time.Hour)
		for i := 0; i < 2; i++ {
			event := &domain.LogEvent{Level: domain.LevelError, Message: "boom", Timestamp: stale}
			if err := uc.Ingest(context.Background(), event); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if got := broadcaster.AlertCount(); got != 1 {
			t.Errorf("expected threshold alert for replayed backlog, got %d", got)
		}
	})
}
