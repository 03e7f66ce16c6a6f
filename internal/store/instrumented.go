package store

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/pkg/metrics"
)

// Instrumented wraps a Store and records operation counts and latencies.
type Instrumented struct {
	next    Store
	metrics *metrics.StoreMetrics
}

// NewInstrumented returns next unchanged when m is nil.
func NewInstrumented(next Store, m *metrics.StoreMetrics) Store {
	if m == nil {
		return next
	}
	return &Instrumented{next: next, metrics: m}
}

// PutReport implements Store.
func (s *Instrumented) PutReport(ctx context.Context, r report.Report) error {
	done := s.observe("put_report")
	err := s.next.PutReport(ctx, r)
	done(err)
	return err
}

// UpdateLastReport implements Store.
func (s *Instrumented) UpdateLastReport(ctx context.Context, r report.Report) error {
	done := s.observe("update_last_report")
	err := s.next.UpdateLastReport(ctx, r)
	done(err)
	return err
}

// GetLastReport implements Store.
func (s *Instrumented) GetLastReport(ctx context.Context, station string) (report.Report, error) {
	done := s.observe("get_last_report")
	r, err := s.next.GetLastReport(ctx, station)
	done(err)
	return r, err
}

// ScanLastReports implements Store.
func (s *Instrumented) ScanLastReports(ctx context.Context, after *Cursor, limit int) (Page, error) {
	done := s.observe("scan_last_reports")
	page, err := s.next.ScanLastReports(ctx, after, limit)
	done(err)
	if err == nil {
		s.metrics.ItemsReturned.WithLabelValues("scan_last_reports").Observe(float64(len(page.Reports)))
	}
	return page, err
}

// QueryReports implements Store.
func (s *Instrumented) QueryReports(ctx context.Context, q Query) (Page, error) {
	done := s.observe("query_reports")
	page, err := s.next.QueryReports(ctx, q)
	done(err)
	if err == nil {
		s.metrics.ItemsReturned.WithLabelValues("query_reports").Observe(float64(len(page.Reports)))
	}
	return page, err
}

// DeleteReport implements Store.
func (s *Instrumented) DeleteReport(ctx context.Context, station, date string) error {
	done := s.observe("delete_report")
	err := s.next.DeleteReport(ctx, station, date)
	done(err)
	return err
}

// DeleteLastReport implements Store.
func (s *Instrumented) DeleteLastReport(ctx context.Context, station string) error {
	done := s.observe("delete_last_report")
	err := s.next.DeleteLastReport(ctx, station)
	done(err)
	return err
}

// RecordReport implements Recorder. The write is observed as one operation
// when the wrapped store is a Recorder, as its two parts otherwise.
func (s *Instrumented) RecordReport(ctx context.Context, r report.Report) error {
	rec, ok := s.next.(Recorder)
	if !ok {
		return recordSeparately(ctx, s, r)
	}
	done := s.observe("record_report")
	err := rec.RecordReport(ctx, r)
	done(err)
	return err
}

func (s *Instrumented) observe(operation string) func(err error) {
	timer := prometheus.NewTimer(s.metrics.OperationDuration.WithLabelValues(operation))
	return func(err error) {
		timer.ObserveDuration()
		status := "success"
		// A missing last report is an answer, not a store failure.
		if err != nil && !errors.Is(err, ErrNotFound) {
			status = "error"
		}
		s.metrics.OperationsTotal.WithLabelValues(operation, status).Inc()
	}
}

var (
	_ Store    = (*Instrumented)(nil)
	_ Recorder = (*Instrumented)(nil)
)
