package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/logpipe/internal/domain"
)

// AlertThresholds configures when the monitor fires.
type AlertThresholds struct {
	Errors   int           // errors within the window that trigger an alert
	Warnings int           // warnings within the window that trigger an alert
	Window   time.Duration // sliding window size, also the alert cooldown
}

// AlertMonitor tracks a sliding window of recent error and warning
// timestamps and emits an alert when a threshold is crossed. After an
// alert, the cooldown gate resets but the window counters keep
// accumulating. Best-effort notification, not guaranteed delivery.
type AlertMonitor struct {
	thresholds  AlertThresholds
	broadcaster domain.Broadcaster
	logger      *slog.Logger
	now         func() time.Time

	mu        sync.Mutex
	errors    []time.Time
	warnings  []time.Time
	lastAlert time.Time
}

// NewAlertMonitor creates an AlertMonitor publishing through b.
func NewAlertMonitor(thresholds AlertThresholds, b domain.Broadcaster, logger *slog.Logger) *AlertMonitor {
	if thresholds.Window <= 0 {
		thresholds.Window = 5 * time.Minute
	}
	return &AlertMonitor{
		thresholds:  thresholds,
		broadcaster: b,
		logger:      logger.With("component", "alert_monitor"),
		now:         time.Now,
	}
}

// Record feeds one accepted event's level into the window and fires an
// alert if a threshold is crossed and the cooldown has elapsed. The
// window counts arrival times, not event timestamps, so a backlog of
// old events replayed after an outage still crosses the threshold.
func (m *AlertMonitor) Record(level domain.Level) {
	if level != domain.LevelError && level != domain.LevelWarn {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.thresholds.Window)

	if level == domain.LevelError {
		m.errors = append(prune(m.errors, cutoff), now)
	} else {
		m.warnings = append(prune(m.warnings, cutoff), now)
	}

	if now.Sub(m.lastAlert) < m.thresholds.Window {
		return
	}

	var alertType, message string
	switch {
	case m.thresholds.Errors > 0 && len(m.errors) >= m.thresholds.Errors:
		alertType = "error-threshold"
		message = fmt.Sprintf("%d errors in the last %s", len(m.errors), m.thresholds.Window)
	case m.thresholds.Warnings > 0 && len(m.warnings) >= m.thresholds.Warnings:
		alertType = "warning-threshold"
		message = fmt.Sprintf("%d warnings in the last %s", len(m.warnings), m.thresholds.Window)
	default:
		return
	}

	m.lastAlert = now
	m.logger.Warn("alert threshold crossed", "type", alertType, "message", message)
	if m.broadcaster != nil {
		m.broadcaster.Alert(alertType, message)
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
