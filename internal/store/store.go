// Package store defines the report store contract shared by the DynamoDB,
// PostgreSQL and in-memory backends.
//
// A store holds two collections: the reports table, keyed by station and
// date, and the last-report table, keyed by station only. Writes to the two
// collections are independent; callers that need both must issue both.
package store

import (
	"context"
	"errors"
	"fmt"

	"procodus.dev/voltage/internal/report"
)

// ErrNotFound is returned by point lookups when no item exists.
var ErrNotFound = errors.New("item not found")

// Store is the key-value store used by the report handlers.
type Store interface {
	// PutReport writes a report keyed by (station, date). An existing report
	// with the same key is overwritten.
	PutReport(ctx context.Context, r report.Report) error

	// UpdateLastReport sets the last report of r.Station to r, whatever
	// the previously stored date was.
	UpdateLastReport(ctx context.Context, r report.Report) error

	// GetLastReport returns the last report of a station or ErrNotFound.
	GetLastReport(ctx context.Context, station string) (report.Report, error)

	// ScanLastReports returns one page of the last-report table.
	ScanLastReports(ctx context.Context, after *Cursor, limit int) (Page, error)

	// QueryReports returns one page of a station's reports.
	QueryReports(ctx context.Context, q Query) (Page, error)

	// DeleteReport removes a report. Deleting a missing report is not an error.
	DeleteReport(ctx context.Context, station, date string) error

	// DeleteLastReport removes the last report of a station.
	DeleteLastReport(ctx context.Context, station string) error
}

// Recorder is implemented by stores that can write a report and the last
// report of its station in one transaction.
type Recorder interface {
	RecordReport(ctx context.Context, r report.Report) error
}

// Record writes r to the reports table and makes it the last report of its
// station. Without a Recorder the two writes are independent, and a failed
// last-report update leaves the report stored.
func Record(ctx context.Context, s Store, r report.Report) error {
	if rec, ok := s.(Recorder); ok {
		return rec.RecordReport(ctx, r)
	}
	return recordSeparately(ctx, s, r)
}

func recordSeparately(ctx context.Context, s Store, r report.Report) error {
	if err := s.PutReport(ctx, r); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	if err := s.UpdateLastReport(ctx, r); err != nil {
		return fmt.Errorf("failed to update last report: %w", err)
	}
	return nil
}

// Query selects a range of one station's reports, most recent first.
type Query struct {
	// Station is the partition key, already normalized.
	Station string
	// StartDate is an inclusive lower bound on the date; empty means no bound.
	StartDate string
	// After resumes the query strictly after this key.
	After *Cursor
	// Limit caps the number of reports in the page; zero lets the backend decide.
	Limit int
}

// Page is one page of results. Next is nil when no further page exists.
type Page struct {
	Reports []report.Report
	Next    *Cursor
}

// QueryAll drains every page of q.
func QueryAll(ctx context.Context, s Store, q Query) ([]report.Report, error) {
	var all []report.Report
	for {
		page, err := s.QueryReports(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Reports...)
		if page.Next == nil {
			return all, nil
		}
		q.After = page.Next
	}
}

// ScanAll drains every page of the last-report table.
func ScanAll(ctx context.Context, s Store, limit int) ([]report.Report, error) {
	var (
		all   []report.Report
		after *Cursor
	)
	for {
		page, err := s.ScanLastReports(ctx, after, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Reports...)
		if page.Next == nil {
			return all, nil
		}
		after = page.Next
	}
}
