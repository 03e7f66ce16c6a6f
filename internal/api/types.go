package api

import (
	"encoding/json"

	"procodus.dev/voltage/internal/report"
)

// ReportResponse echoes a stored report. Voltages are the submitted literals.
type ReportResponse struct {
	Station string      `json:"station"`
	Date    string      `json:"date"`
	Battery json.Number `json:"battery"`
	Panel   json.Number `json:"panel"`
}

// LastReportResponse is the last report of one station.
type LastReportResponse struct {
	Station string  `json:"station"`
	Date    string  `json:"date"`
	Battery float64 `json:"battery"`
	Panel   float64 `json:"panel"`
}

// LastReportsResponse lists the last report of every station.
type LastReportsResponse struct {
	Reports []LastReportResponse `json:"reports"`
}

// StationReport is one entry of a station's report listing.
type StationReport struct {
	Date    string  `json:"date"`
	Battery float64 `json:"battery"`
	Panel   float64 `json:"panel"`
}

// StationReportsResponse is one page of a station's reports. NextKey is
// null on the last page.
type StationReportsResponse struct {
	Reports []StationReport `json:"reports"`
	NextKey *string         `json:"nextKey"`
}

// DayCountResponse is the number of reports of one day.
type DayCountResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ReportCountsResponse lists the per-day report counts of a station.
type ReportCountsResponse struct {
	Reports []DayCountResponse `json:"reports"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message string `json:"message"`
}

func newLastReportResponse(r report.Report) LastReportResponse {
	return LastReportResponse{
		Station: r.Station,
		Date:    r.Date,
		Battery: r.BatteryFloat(),
		Panel:   r.PanelFloat(),
	}
}

func newStationReport(r report.Report) StationReport {
	return StationReport{
		Date:    r.Date,
		Battery: r.BatteryFloat(),
		Panel:   r.PanelFloat(),
	}
}
