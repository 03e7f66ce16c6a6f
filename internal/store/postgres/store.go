package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store"
)

// Store is a store.Store backed by PostgreSQL. Pages are fetched with one
// extra row so Next is only set when another page exists.
type Store struct {
	db *gorm.DB
}

// New returns a Store over an open, migrated database.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("database cannot be nil")
	}
	return &Store{db: db}, nil
}

// PutReport implements store.Store.
func (s *Store) PutReport(ctx context.Context, r report.Report) error {
	rec := NewReportRecord(r)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "station"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"battery", "panel", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to put report: %w", err)
	}
	return nil
}

// UpdateLastReport implements store.Store.
func (s *Store) UpdateLastReport(ctx context.Context, r report.Report) error {
	rec := NewLastReportRecord(r)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "station"}},
			DoUpdates: clause.AssignmentColumns([]string{"date", "battery", "panel", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("failed to update last report: %w", err)
	}
	return nil
}

// RecordReport implements store.Recorder: the report and the last report
// are written in one transaction.
func (s *Store) RecordReport(ctx context.Context, r report.Report) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inTx := &Store{db: tx}
		if err := inTx.PutReport(ctx, r); err != nil {
			return err
		}
		return inTx.UpdateLastReport(ctx, r)
	})
	if err != nil {
		return fmt.Errorf("failed to record report: %w", err)
	}
	return nil
}

// GetLastReport implements store.Store.
func (s *Store) GetLastReport(ctx context.Context, station string) (report.Report, error) {
	var rec LastReportRecord
	err := s.db.WithContext(ctx).Where("station = ?", station).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return report.Report{}, store.ErrNotFound
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to get last report: %w", err)
	}
	return rec.Report(), nil
}

// ScanLastReports implements store.Store. Pages are ordered by station.
func (s *Store) ScanLastReports(ctx context.Context, after *store.Cursor, limit int) (store.Page, error) {
	tx := s.db.WithContext(ctx).Order("station")
	if after != nil {
		tx = tx.Where("station > ?", after.Station)
	}
	if limit > 0 {
		tx = tx.Limit(limit + 1)
	}

	var recs []LastReportRecord
	if err := tx.Find(&recs).Error; err != nil {
		return store.Page{}, fmt.Errorf("failed to scan last reports: %w", err)
	}

	page := store.Page{Reports: make([]report.Report, 0, len(recs))}
	for _, rec := range recs {
		if limit > 0 && len(page.Reports) == limit {
			page.Next = &store.Cursor{Station: page.Reports[limit-1].Station}
			break
		}
		page.Reports = append(page.Reports, rec.Report())
	}
	return page, nil
}

// QueryReports implements store.Store.
func (s *Store) QueryReports(ctx context.Context, q store.Query) (store.Page, error) {
	tx := s.db.WithContext(ctx).Where("station = ?", q.Station)
	if q.StartDate != "" {
		tx = tx.Where(`"date" >= ?`, q.StartDate)
	}
	if q.After != nil {
		tx = tx.Where(`"date" < ?`, q.After.Date)
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "date"}, Desc: true})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit + 1)
	}

	var recs []ReportRecord
	if err := tx.Find(&recs).Error; err != nil {
		return store.Page{}, fmt.Errorf("failed to query reports: %w", err)
	}

	page := store.Page{Reports: make([]report.Report, 0, len(recs))}
	for _, rec := range recs {
		if q.Limit > 0 && len(page.Reports) == q.Limit {
			last := page.Reports[q.Limit-1]
			page.Next = &store.Cursor{Station: last.Station, Date: last.Date}
			break
		}
		page.Reports = append(page.Reports, rec.Report())
	}
	return page, nil
}

// DeleteReport implements store.Store.
func (s *Store) DeleteReport(ctx context.Context, station, date string) error {
	err := s.db.WithContext(ctx).
		Where(`station = ? AND "date" = ?`, station, date).
		Delete(&ReportRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

// DeleteLastReport implements store.Store.
func (s *Store) DeleteLastReport(ctx context.Context, station string) error {
	err := s.db.WithContext(ctx).
		Where("station = ?", station).
		Delete(&LastReportRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete last report: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
