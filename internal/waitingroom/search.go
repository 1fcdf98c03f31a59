package waitingroom

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const maxPageSize = 100

// Search is the read-only facade the presentation layer uses for free-text
// lookup and per-day history. It imposes no ordering beyond what the store
// returns.
type Search struct {
	store    EntryStore
	pageSize int
}

func NewSearch(store EntryStore, pageSize int) *Search {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Search{store: store, pageSize: pageSize}
}

// ByTerm matches the term, case-insensitively, against client name, pet name
// and reason for visit. An empty term matches everything. Pages are 1-based.
func (s *Search) ByTerm(ctx context.Context, term string, page int) (*EntryPage, error) {
	if page < 1 {
		page = 1
	}
	term = strings.TrimSpace(term)

	items, total, err := s.store.SearchEntries(ctx, term, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}

	return &EntryPage{
		Items:    items,
		Page:     page,
		PageSize: s.pageSize,
		Total:    total,
	}, nil
}

// HistoryForDay returns every entry, in any status, that arrived on the
// given calendar day in the day's own location.
func (s *Search) HistoryForDay(ctx context.Context, day time.Time, page int) (*EntryPage, error) {
	if page < 1 {
		page = 1
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	items, total, err := s.store.EntriesByArrivalRange(ctx, dayStart, dayEnd, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("load day history: %w", err)
	}

	return &EntryPage{
		Items:    items,
		Page:     page,
		PageSize: s.pageSize,
		Total:    total,
	}, nil
}
