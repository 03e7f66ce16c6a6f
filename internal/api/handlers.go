// Package api implements the station report handlers on API Gateway proxy
// events. Every handler validates its input before touching the store and
// returns store failures as errors for the host to turn into a 500.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store"
	"procodus.dev/voltage/pkg/logger"
	"procodus.dev/voltage/pkg/metrics"
)

// DefaultPageSize bounds one page of a station's reports.
const DefaultPageSize = 100

// Handler is the signature shared by every handler and the Lambda runtime.
type Handler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// Notifier is told about every stored report.
type Notifier interface {
	ReportCreated(ctx context.Context, r report.Report)
}

// HandlersConfig holds the dependencies of the handlers.
type HandlersConfig struct {
	Store  store.Store
	Logger *slog.Logger
	// Origin is the Access-Control-Allow-Origin value; defaults to AnyOrigin.
	Origin string
	// PageSize defaults to DefaultPageSize.
	PageSize int
	// Metrics is optional.
	Metrics *metrics.APIMetrics
	// Notifier is optional.
	Notifier Notifier
}

// Handlers serves the five report endpoints.
type Handlers struct {
	store    store.Store
	logger   *slog.Logger
	origin   string
	pageSize int
	metrics  *metrics.APIMetrics
	notifier Notifier
}

// NewHandlers validates cfg and returns the report handlers.
func NewHandlers(cfg *HandlersConfig) (*Handlers, error) {
	if cfg == nil {
		return nil, errors.New("handlers config cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.PageSize < 0 {
		return nil, errors.New("page size cannot be negative")
	}

	h := &Handlers{
		store:    cfg.Store,
		logger:   cfg.Logger,
		origin:   cfg.Origin,
		pageSize: cfg.PageSize,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
	}
	if h.origin == "" {
		h.origin = AnyOrigin
	}
	if h.pageSize == 0 {
		h.pageSize = DefaultPageSize
	}
	return h, nil
}

// CreateReport handles POST /reports.
func (h *Handlers) CreateReport(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.serve(ctx, "create-report", req, h.createReport)
}

// GetLastReport handles GET /last_reports/{station}.
func (h *Handlers) GetLastReport(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.serve(ctx, "get-last-report", req, h.getLastReport)
}

// ListLastReports handles GET /last_reports.
func (h *Handlers) ListLastReports(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.serve(ctx, "list-last-reports", req, h.listLastReports)
}

// ListStationReports handles GET /reports/{station}.
func (h *Handlers) ListStationReports(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.serve(ctx, "list-station-reports", req, h.listStationReports)
}

// ReportCounts handles GET /reports/{station}/count.
func (h *Handlers) ReportCounts(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return h.serve(ctx, "report-counts", req, h.reportCounts)
}

type handlerFunc func(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// serve runs fn with a request-scoped logger and records its metrics.
func (h *Handlers) serve(ctx context.Context, name string, req events.APIGatewayProxyRequest, fn handlerFunc) (events.APIGatewayProxyResponse, error) {
	log := logger.ForInvocation(ctx, h.logger).With("handler", name)
	start := time.Now()

	if h.metrics != nil {
		h.metrics.RequestsInFlight.WithLabelValues(name).Inc()
		defer h.metrics.RequestsInFlight.WithLabelValues(name).Dec()
	}

	resp, err := fn(ctx, log, req)

	status := resp.StatusCode
	if err != nil {
		status = http.StatusInternalServerError
		log.Error("request failed", "error", err)
	} else {
		log.Info("request handled", "status", status, "duration", time.Since(start))
	}

	if h.metrics != nil {
		h.metrics.RequestsTotal.WithLabelValues(name, strconv.Itoa(status)).Inc()
		h.metrics.RequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		h.metrics.ResponseSize.WithLabelValues(name).Observe(float64(len(resp.Body)))
	}

	return resp, err
}

func (h *Handlers) createReport(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	r, apiErr := parseNewReport(req)
	if apiErr != nil {
		log.Warn("rejected new report", "reason", apiErr.Message)
		return h.fail(apiErr)
	}

	if err := store.Record(ctx, h.store, r); err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	log.Info("report stored", "station", r.Station, "date", r.Date)
	if h.metrics != nil {
		h.metrics.ReportsCreated.Inc()
	}
	if h.notifier != nil {
		h.notifier.ReportCreated(ctx, r)
	}

	return h.respond(http.StatusCreated, ReportResponse{
		Station: r.Station,
		Date:    r.Date,
		Battery: r.Battery,
		Panel:   r.Panel,
	})
}

func (h *Handlers) getLastReport(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	station, ok := stationParam(req)
	if !ok {
		return h.fail(ErrMissingParameter)
	}

	r, err := h.store.GetLastReport(ctx, station)
	if errors.Is(err, store.ErrNotFound) {
		log.Info("station not found", "station", station)
		return h.fail(stationNotFound(req))
	}
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to get last report of %s: %w", station, err)
	}

	return h.respond(http.StatusOK, newLastReportResponse(r))
}

func (h *Handlers) listLastReports(ctx context.Context, _ *slog.Logger, _ events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	reports, err := store.ScanAll(ctx, h.store, h.pageSize)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to scan last reports: %w", err)
	}

	slices.SortFunc(reports, func(a, b report.Report) int {
		return strings.Compare(a.Station, b.Station)
	})

	body := LastReportsResponse{Reports: make([]LastReportResponse, len(reports))}
	for i, r := range reports {
		body.Reports[i] = newLastReportResponse(r)
	}
	return h.respond(http.StatusOK, body)
}

func (h *Handlers) listStationReports(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	station, ok := stationParam(req)
	if !ok {
		return h.fail(ErrMissingParameter)
	}

	q := store.Query{
		Station:   station,
		StartDate: startDate(req.QueryStringParameters["start_date"]),
		Limit:     h.pageSize,
	}

	if token := req.QueryStringParameters["next_key"]; token != "" {
		cursor, err := store.DecodeReportCursor(token)
		if err != nil || cursor.Station != station {
			log.Warn("rejected next_key", "station", station, "error", err)
			return h.fail(ErrInvalidCursor)
		}
		q.After = cursor
	}

	page, err := h.store.QueryReports(ctx, q)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to query reports of %s: %w", station, err)
	}

	if len(page.Reports) == 0 && q.After == nil {
		log.Info("station not found", "station", station)
		return h.fail(stationNotFound(req))
	}

	body := StationReportsResponse{Reports: make([]StationReport, len(page.Reports))}
	for i, r := range page.Reports {
		body.Reports[i] = newStationReport(r)
	}
	if page.Next != nil {
		token := page.Next.Encode()
		body.NextKey = &token
	}
	return h.respond(http.StatusOK, body)
}

func (h *Handlers) reportCounts(ctx context.Context, log *slog.Logger, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	station, ok := stationParam(req)
	if !ok {
		return h.fail(ErrMissingParameter)
	}

	reports, err := store.QueryAll(ctx, h.store, store.Query{Station: station, Limit: h.pageSize})
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to query reports of %s: %w", station, err)
	}

	if len(reports) == 0 {
		log.Info("station not found", "station", station)
		return h.fail(stationNotFound(req))
	}

	counts, err := report.CountByDay(reports)
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to count reports of %s: %w", station, err)
	}

	body := ReportCountsResponse{Reports: make([]DayCountResponse, len(counts))}
	for i, c := range counts {
		body.Reports[i] = DayCountResponse{Date: c.Date, Count: c.Count}
	}
	return h.respond(http.StatusOK, body)
}

// stationParam returns the normalized station path parameter.
func stationParam(req events.APIGatewayProxyRequest) (string, bool) {
	station := report.NormalizeStation(req.PathParameters["station"])
	return station, station != ""
}

// stationNotFound names the station as the client sent it.
func stationNotFound(req events.APIGatewayProxyRequest) *Error {
	return NotFound(report.DecodeStation(req.PathParameters["station"]))
}

// startDate accepts the submission layout as well as ISO-8601 prefixes,
// which compare correctly against stored dates as they are.
func startDate(value string) string {
	value = strings.TrimSpace(value)
	if converted, err := report.ParseInputDate(value); err == nil {
		return converted
	}
	return value
}

// parseNewReport validates a Create-Report body.
func parseNewReport(req events.APIGatewayProxyRequest) (report.Report, *Error) {
	body := req.Body
	if req.IsBase64Encoded && body != "" {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return report.Report{}, ErrInvalidBody
		}
		body = string(decoded)
	}

	if strings.TrimSpace(body) == "" {
		return report.Report{}, ErrMissingBody
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil || fields == nil {
		return report.Report{}, ErrInvalidBody
	}

	var rawStation, rawDate string
	if !stringField(fields, "station", &rawStation) || !stringField(fields, "date", &rawDate) {
		return report.Report{}, ErrIncompleteBody
	}

	battery, okBattery := numberField(fields, "battery")
	panel, okPanel := numberField(fields, "panel")
	if !okBattery || !okPanel {
		return report.Report{}, ErrIncompleteBody
	}

	station := report.NormalizeStation(rawStation)
	if station == "" {
		return report.Report{}, ErrIncompleteBody
	}

	date, err := report.ParseInputDate(rawDate)
	if err != nil {
		return report.Report{}, ErrDateParse
	}

	return report.Report{
		Station: station,
		Date:    date,
		Battery: battery,
		Panel:   panel,
	}, nil
}

func stringField(fields map[string]json.RawMessage, name string, dst *string) bool {
	raw, ok := fields[name]
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false
	}
	return *dst != ""
}

// numberField accepts a JSON number or a string holding one.
func numberField(fields map[string]json.RawMessage, name string) (json.Number, bool) {
	raw, ok := fields[name]
	if !ok {
		return "", false
	}

	n := json.Number(strings.TrimSpace(string(raw)))
	if !report.ValidDecimal(n) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		n = json.Number(strings.TrimSpace(s))
	}

	return n, report.ValidDecimal(n)
}
