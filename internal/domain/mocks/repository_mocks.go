package mocks

import (
	"context"
	"sync"

	"github.com/user/logpipe/internal/domain"
)

// MockLogStore is a mock implementation of domain.LogStore for testing.
type MockLogStore struct {
	mu             sync.Mutex
	AppendedEvents []domain.LogEvent
	ReadResult     []domain.LogEvent
	Sources        []string
	PrunedCount    int
	AppendErr      error
	ReadErr        error
	ListErr        error
	PruneErr       error
}

func (m *MockLogStore) Append(ctx context.Context, event domain.LogEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.AppendedEvents = append(m.AppendedEvents, event)
	return nil
}

func (m *MockLogStore) ReadAll(ctx context.Context, source string) ([]domain.LogEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	if source == "" {
		return m.ReadResult, nil
	}
	var out []domain.LogEvent
	for _, e := range m.ReadResult {
		if e.Source == source {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockLogStore) ListSources(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Sources, nil
}

func (m *MockLogStore) Prune(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PruneErr != nil {
		return 0, m.PruneErr
	}
	return m.PrunedCount, nil
}

// Events returns a copy of everything appended so far.
func (m *MockLogStore) Events() []domain.LogEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LogEvent, len(m.AppendedEvents))
	copy(out, m.AppendedEvents)
	return out
}

// MockBroadcaster is a mock implementation of domain.Broadcaster.
type MockBroadcaster struct {
	mu        sync.Mutex
	Published []domain.LogEvent
	Alerts    []string
}

func (m *MockBroadcaster) Publish(event domain.LogEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, event)
}

func (m *MockBroadcaster) Alert(alertType, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, alertType+": "+message)
}

// AlertCount returns the number of alerts emitted so far.
func (m *MockBroadcaster) AlertCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}
