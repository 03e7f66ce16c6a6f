// Package memory provides an in-process report store that keeps the key
// ordering and pagination semantics of the persistent backends.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store"
)

// Store is a map-backed store.Store safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	reports map[string]map[string]report.Report
	last    map[string]report.Report
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		reports: make(map[string]map[string]report.Report),
		last:    make(map[string]report.Report),
	}
}

// PutReport implements store.Store.
func (s *Store) PutReport(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDate, ok := s.reports[r.Station]
	if !ok {
		byDate = make(map[string]report.Report)
		s.reports[r.Station] = byDate
	}
	byDate[r.Date] = r
	return nil
}

// UpdateLastReport implements store.Store.
func (s *Store) UpdateLastReport(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last[r.Station] = r
	return nil
}

// GetLastReport implements store.Store.
func (s *Store) GetLastReport(_ context.Context, station string) (report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.last[station]
	if !ok {
		return report.Report{}, store.ErrNotFound
	}
	return r, nil
}

// ScanLastReports implements store.Store. Pages are ordered by station.
func (s *Store) ScanLastReports(_ context.Context, after *store.Cursor, limit int) (store.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stations := make([]string, 0, len(s.last))
	for station := range s.last {
		if after != nil && station <= after.Station {
			continue
		}
		stations = append(stations, station)
	}
	slices.Sort(stations)

	page := store.Page{Reports: make([]report.Report, 0, len(stations))}
	for _, station := range stations {
		if limit > 0 && len(page.Reports) == limit {
			last := page.Reports[len(page.Reports)-1]
			page.Next = &store.Cursor{Station: last.Station}
			break
		}
		page.Reports = append(page.Reports, s.last[station])
	}
	return page, nil
}

// QueryReports implements store.Store.
func (s *Store) QueryReports(_ context.Context, q store.Query) (store.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDate := s.reports[q.Station]
	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		if q.StartDate != "" && date < q.StartDate {
			continue
		}
		if q.After != nil && date >= q.After.Date {
			continue
		}
		dates = append(dates, date)
	}

	slices.SortFunc(dates, func(a, b string) int {
		return strings.Compare(b, a)
	})

	page := store.Page{Reports: make([]report.Report, 0, len(dates))}
	for _, date := range dates {
		if q.Limit > 0 && len(page.Reports) == q.Limit {
			last := page.Reports[len(page.Reports)-1]
			page.Next = &store.Cursor{Station: last.Station, Date: last.Date}
			break
		}
		page.Reports = append(page.Reports, byDate[date])
	}
	return page, nil
}

// DeleteReport implements store.Store.
func (s *Store) DeleteReport(_ context.Context, station, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byDate, ok := s.reports[station]; ok {
		delete(byDate, date)
		if len(byDate) == 0 {
			delete(s.reports, station)
		}
	}
	return nil
}

// DeleteLastReport implements store.Store.
func (s *Store) DeleteLastReport(_ context.Context, station string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.last, station)
	return nil
}

var _ store.Store = (*Store)(nil)
