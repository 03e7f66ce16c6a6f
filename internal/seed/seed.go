// Package seed writes and removes sample reports for development stacks.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store"
)

// Samples returns the fixed sample reports of the development tables.
func Samples() []report.Report {
	return []report.Report{
		{Station: "tonalapa", Date: "2023-02-22T16:20:00", Battery: json.Number("45.0"), Panel: json.Number("68.0")},
		{Station: "caracol", Date: "2023-02-23T16:20:00", Battery: json.Number("55.0"), Panel: json.Number("60.0")},
		{Station: "piedra grande", Date: "2023-02-22T16:20:00", Battery: json.Number("34.0"), Panel: json.Number("40.0")},
		{Station: "la piedra", Date: "2023-02-22T16:20:00", Battery: json.Number("34.0"), Panel: json.Number("40.0")},
	}
}

// Add writes every report to the reports table and makes it the last
// report of its station, in order.
func Add(ctx context.Context, s store.Store, reports []report.Report, log *slog.Logger) error {
	log.Info("adding reports", "count", len(reports))
	for _, r := range reports {
		if err := store.Record(ctx, s, r); err != nil {
			return fmt.Errorf("failed to add report %s/%s: %w", r.Station, r.Date, err)
		}
	}
	log.Info("reports added", "count", len(reports))
	return nil
}

// Remove deletes every report and the last report of its station.
func Remove(ctx context.Context, s store.Store, reports []report.Report, log *slog.Logger) error {
	log.Info("removing reports", "count", len(reports))
	for _, r := range reports {
		if err := s.DeleteReport(ctx, r.Station, r.Date); err != nil {
			return fmt.Errorf("failed to remove report %s/%s: %w", r.Station, r.Date, err)
		}
		if err := s.DeleteLastReport(ctx, r.Station); err != nil {
			return fmt.Errorf("failed to remove last report %s: %w", r.Station, err)
		}
	}
	log.Info("reports removed", "count", len(reports))
	return nil
}
