package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/logpipe/internal/domain"
)

// QueryFilter is the set of predicates a historical query composes
// with logical AND. Zero values mean "no filtering" for that field.
type QueryFilter struct {
	Source    string
	Level     domain.Level
	Search    string
	TimeRange string // duration specifier, e.g. "15m", "24h", "7d"
}

// LogStats aggregates counts over the full store.
type LogStats struct {
	Total    int                  `json:"total"`
	ByLevel  map[domain.Level]int `json:"by_level"`
	BySource map[string]int       `json:"by_source"`
}

// QueryLogsUseCase answers filtered historical queries over the log
// store. Results are always sorted by timestamp descending; ties keep
// scan (arrival) order.
type QueryLogsUseCase struct {
	store  domain.LogStore
	logger *slog.Logger
	now    func() time.Time
}

// NewQueryLogsUseCase creates a new QueryLogsUseCase.
func NewQueryLogsUseCase(store domain.LogStore, logger *slog.Logger) *QueryLogsUseCase {
	return &QueryLogsUseCase{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Query scans the store and returns the events matching every filter
// predicate, newest first.
func (uc *QueryLogsUseCase) Query(ctx context.Context, filter QueryFilter) ([]domain.LogEvent, error) {
	var cutoff time.Time
	if filter.TimeRange != "" {
		d, err := ParseTimeRange(filter.TimeRange)
		if err != nil {
			return nil, &domain.ValidationError{Field: "timeRange", Reason: err.Error()}
		}
		cutoff = uc.now().Add(-d)
	}
	if filter.Level != "" {
		if _, err := domain.ParseLevel(string(filter.Level)); err != nil {
			return nil, &domain.ValidationError{Field: "level", Reason: err.Error()}
		}
	}

	events, err := uc.store.ReadAll(ctx, filter.Source)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(filter.Search)
	matched := make([]domain.LogEvent, 0, len(events))
	for _, e := range events {
		if filter.Level != "" && e.Level != filter.Level {
			continue
		}
		if !cutoff.IsZero() && e.Timestamp.Before(cutoff) {
			continue
		}
		if search != "" && !matchesSearch(e, search) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return matched, nil
}

// Sources lists all sources present in the store.
func (uc *QueryLogsUseCase) Sources(ctx context.Context) ([]string, error) {
	sources, err := uc.store.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(sources)
	return sources, nil
}

// Stats runs a filter-less scan and groups by level and source.
func (uc *QueryLogsUseCase) Stats(ctx context.Context) (*LogStats, error) {
	events, err := uc.store.ReadAll(ctx, "")
	if err != nil {
		return nil, err
	}

	stats := &LogStats{
		Total:    len(events),
		ByLevel:  make(map[domain.Level]int),
		BySource: make(map[string]int),
	}
	for _, e := range events {
		stats.ByLevel[e.Level]++
		stats.BySource[e.Source]++
	}
	return stats, nil
}

// matchesSearch does a case-insensitive substring match over the
// message, level, source, and serialized metadata, so a search term
// can match buried metadata fields.
func matchesSearch(e domain.LogEvent, search string) bool {
	if strings.Contains(strings.ToLower(e.Message), search) {
		return true
	}
	if strings.Contains(strings.ToLower(string(e.Level)), search) {
		return true
	}
	if strings.Contains(strings.ToLower(e.Source), search) {
		return true
	}
	return strings.Contains(strings.ToLower(string(e.Metadata)), search)
}

// ParseTimeRange parses duration specifiers like "15m", "24h" and
// "7d". The "d" suffix means 24-hour days, which time.ParseDuration
// does not accept.
func ParseTimeRange(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid time range %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid time range %q", s)
	}
	return d, nil
}
