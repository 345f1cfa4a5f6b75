package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/user/logpipe/internal/domain"
	"github.com/user/logpipe/internal/domain/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedEvents(base time.Time) []domain.LogEvent {
	return []domain.LogEvent{
		{ID: "1", Source: "svc-a", Level: domain.LevelInfo, Message: "started", Timestamp: base.Add(1 * time.Minute)},
		{ID: "2", Source: "svc-a", Level: domain.LevelError, Message: "db connection refused", Timestamp: base.Add(2 * time.Minute)},
		{ID: "3", Source: "svc-b", Level: domain.LevelError, Message: "disk full", Timestamp: base.Add(3 * time.Minute)},
		{ID: "4", Source: "svc-b", Level: domain.LevelWarn, Message: "slow request", Timestamp: base.Add(4 * time.Minute),
			Metadata: json.RawMessage(`{"requestId":"abc123","duration_ms":1532}`)},
	}
}

func TestQueryLogs_FilterRoundTrip(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &mocks.MockLogStore{ReadResult: fixedEvents(base)}
	uc := NewQueryLogsUseCase(store, testLogger())

	events, err := uc.Query(context.Background(), QueryFilter{Source: "svc-a", Level: domain.LevelError})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}

	want := []domain.LogEvent{
		{ID: "2", Source: "svc-a", Level: domain.LevelError, Message: "db connection refused", Timestamp: base.Add(2 * time.Minute)},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("unexpected query result (-want +got):\n%s", diff)
	}
}

func TestQueryLogs_SortedByTimestampDescending(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &mocks.MockLogStore{ReadResult: fixedEvents(base)}
	uc := NewQueryLogsUseCase(store, testLogger())

	events, err := uc.Query(context.Background(), QueryFilter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp.After(events[i-1].Timestamp) {
			t.Fatalf("events not sorted newest-first at index %d", i)
		}
	}
	if events[0].ID != "4" {
		t.Errorf("expected newest event first, got ID %s", events[0].ID)
	}
}

func TestQueryLogs_SearchMatchesMetadata(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &mocks.MockLogStore{ReadResult: fixedEvents(base)}
	uc := NewQueryLogsUseCase(store, testLogger())

	// "abc123" appears only inside the metadata bag.
	events, err := uc.Query(context.Background(), QueryFilter{Search: "ABC123"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 match, got %d", len(events))
	}
	if events[0].ID != "4" {
		t.Errorf("expected the metadata-bearing event, got ID %s", events[0].ID)
	}
}

func TestQueryLogs_SearchMatchesMessageAndSource(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &mocks.MockLogStore{ReadResult: fixedEvents(base)}
	uc := NewQueryLogsUseCase(store, testLogger())

	tests := []struct {
		search string
		want   int
	}{
		{"disk", 1},
		{"svc-b", 2},
		{"error", 2}, // matches level
		{"nothing-matches-this", 0},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			events, err := uc.Query(context.Background(), QueryFilter{Search: tt.search})
			if err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("search %q: expected %d events, got %d", tt.search, tt.want, len(events))
			}
		})
	}
}

func TestQueryLogs_TimeRange(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	store := &mocks.MockLogStore{ReadResult: []domain.LogEvent{
		{ID: "old", Source: "svc-a", Level: domain.LevelInfo, Message: "old", Timestamp: now.Add(-48 * time.Hour)},
		{ID: "new", Source: "svc-a", Level: domain.LevelInfo, Message: "new", Timestamp: now.Add(-1 * time.Hour)},
	}}
	uc := NewQueryLogsUseCase(store, testLogger())
	uc.now = func() time.Time { return now }

	events, err := uc.Query(context.Background(), QueryFilter{TimeRange: "24h"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(events) != 1 || events[0].ID != "new" {
		t.Errorf("expected only the recent event, got %v", events)
	}

	if _, err := uc.Query(context.Background(), QueryFilter{TimeRange: "sideways"}); err == nil {
		t.Error("expected an error for a malformed time range")
	}
}

func TestQueryLogs_RejectsUnknownLevel(t *testing.T) {
	store := &mocks.MockLogStore{}
	uc := NewQueryLogsUseCase(store, testLogger())

	_, err := uc.Query(context.Background(), QueryFilter{Level: "fatal"})
	if err == nil {
		t.Fatal("expected an error for an unknown level")
	}
	if _, ok := err.(*domain.ValidationError); !ok {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

func TestQueryLogs_Stats(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &mocks.MockLogStore{ReadResult: fixedEvents(base)}
	uc := NewQueryLogsUseCase(store, testLogger())

	stats, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}

	want := &LogStats{
		Total:    4,
		ByLevel:  map[domain.Level]int{domain.LevelInfo: 1, domain.LevelError: 2, domain.LevelWarn: 1},
		BySource: map[string]int{"svc-a": 2, "svc-b": 2},
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("unexpected stats (-want +got):\n%s", diff)
	}
}

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "15m", want: 15 * time.Minute},
		{in: "24h", want: 24 * time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "0d", want: 0},
		{in: "-1h", wantErr: true},
		{in: "d", wantErr: true},
		{in: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimeRange(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
