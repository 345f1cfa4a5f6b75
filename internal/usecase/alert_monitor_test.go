package usecase

import (
	"testing"
	"time"

	"github.com/user/logpipe/internal/domain"
	"github.com/user/logpipe/internal/domain/mocks"
)

func TestAlertMonitor_ErrorThreshold(t *testing.T) {
	b := &mocks.MockBroadcaster{}
	m := NewAlertMonitor(AlertThresholds{Errors: 5, Warnings: 10, Window: 5 * time.Minute}, b, testLogger())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	// Four errors: below threshold, no alert.
	for i := 0; i < 4; i++ {
		m.Record(domain.LevelError)
	}
	if got := b.AlertCount(); got != 0 {
		t.Fatalf("expected no alert below threshold, got %d", got)
	}

	// Fifth error crosses the threshold: exactly one alert.
	m.Record(domain.LevelError)
	if got := b.AlertCount(); got != 1 {
		t.Fatalf("expected exactly one alert, got %d", got)
	}

	// A sixth error inside the cooldown must not re-alert.
	current = current.Add(time.Minute)
	m.Record(domain.LevelError)
	if got := b.AlertCount(); got != 1 {
		t.Fatalf("expected cooldown to suppress re-alerting, got %d", got)
	}

	// Once the cooldown elapses, a fresh burst alerts again.
	current = current.Add(6 * time.Minute)
	for i := 0; i < 5; i++ {
		m.Record(domain.LevelError)
	}
	if got := b.AlertCount(); got != 2 {
		t.Fatalf("expected a second alert after cooldown, got %d", got)
	}
}

func TestAlertMonitor_WarningThreshold(t *testing.T) {
	b := &mocks.MockBroadcaster{}
	m := NewAlertMonitor(AlertThresholds{Errors: 5, Warnings: 3, Window: 5 * time.Minute}, b, testLogger())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	for i := 0; i < 3; i++ {
		m.Record(domain.LevelWarn)
	}
	if got := b.AlertCount(); got != 1 {
		t.Fatalf("expected one warning alert, got %d", got)
	}
}

func TestAlertMonitor_WindowExpiry(t *testing.T) {
	b := &mocks.MockBroadcaster{}
	m := NewAlertMonitor(AlertThresholds{Errors: 3, Window: 5 * time.Minute}, b, testLogger())

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	// Two errors, then a long gap: the window forgets them.
	m.Record(domain.LevelError)
	m.Record(domain.LevelError)

	current = current.Add(10 * time.Minute)
	m.Record(domain.LevelError)

	if got := b.AlertCount(); got != 0 {
		t.Fatalf("expected expired errors not to count, got %d alerts", got)
	}
}

func TestAlertMonitor_IgnoresInfoAndDebug(t *testing.T) {
	b := &mocks.MockBroadcaster{}
	m := NewAlertMonitor(AlertThresholds{Errors: 1, Warnings: 1, Window: 5 * time.Minute}, b, testLogger())

	m.Record(domain.LevelInfo)
	m.Record(domain.LevelDebug)

	if got := b.AlertCount(); got != 0 {
		t.Fatalf("info/debug must never alert, got %d", got)
	}
}
