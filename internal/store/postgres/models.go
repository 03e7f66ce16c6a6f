package postgres

import (
	"encoding/json"
	"time"

	"procodus.dev/voltage/internal/report"
)

// ReportRecord is a row of the reports table, keyed by station and date.
// Voltages are NUMERIC columns read back as their decimal text.
type ReportRecord struct {
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	Station   string    `gorm:"primaryKey;size:255"`
	Date      string    `gorm:"primaryKey;size:32"`
	Battery   string    `gorm:"type:numeric;not null"`
	Panel     string    `gorm:"type:numeric;not null"`
}

// TableName specifies the table name for ReportRecord.
func (ReportRecord) TableName() string {
	return "reports"
}

// LastReportRecord is a row of the last_reports table, one per station.
type LastReportRecord struct {
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
	Station   string    `gorm:"primaryKey;size:255"`
	Date      string    `gorm:"size:32;not null"`
	Battery   string    `gorm:"type:numeric;not null"`
	Panel     string    `gorm:"type:numeric;not null"`
}

// TableName specifies the table name for LastReportRecord.
func (LastReportRecord) TableName() string {
	return "last_reports"
}

// NewReportRecord converts a report to its row.
func NewReportRecord(r report.Report) ReportRecord {
	return ReportRecord{
		Station: r.Station,
		Date:    r.Date,
		Battery: r.Battery.String(),
		Panel:   r.Panel.String(),
	}
}

// Report converts the row back to a report.
func (rec ReportRecord) Report() report.Report {
	return report.Report{
		Station: rec.Station,
		Date:    rec.Date,
		Battery: json.Number(rec.Battery),
		Panel:   json.Number(rec.Panel),
	}
}

// NewLastReportRecord converts a report to its last_reports row.
func NewLastReportRecord(r report.Report) LastReportRecord {
	return LastReportRecord{
		Station: r.Station,
		Date:    r.Date,
		Battery: r.Battery.String(),
		Panel:   r.Panel.String(),
	}
}

// Report converts the row back to a report.
func (rec LastReportRecord) Report() report.Report {
	return report.Report{
		Station: rec.Station,
		Date:    rec.Date,
		Battery: json.Number(rec.Battery),
		Panel:   json.Number(rec.Panel),
	}
}
