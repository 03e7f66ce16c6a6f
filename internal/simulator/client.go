package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"procodus.dev/voltage/internal/api"
	"procodus.dev/voltage/internal/report"
)

// Submitter delivers one station report.
type Submitter interface {
	Submit(ctx context.Context, r report.Report) error
}

// HTTPClient submits reports to a running API the way a station does.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient returns a client for the API at baseURL. A nil client uses a
// client with a 10s timeout.
func NewHTTPClient(baseURL string, client *http.Client) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, errors.New("API URL cannot be empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}, nil
}

// Submit posts r to /reports with its date in the station input format.
func (c *HTTPClient) Submit(ctx context.Context, r report.Report) error {
	at, err := time.Parse(report.DateLayout, r.Date)
	if err != nil {
		return fmt.Errorf("failed to parse report date: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"station": r.Station,
		"date":    at.Format(report.InputDateLayout),
		"battery": r.Battery,
		"panel":   r.Panel,
	})
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+api.ResourceReports, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to submit report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		var e api.ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Message == "" {
			e.Message = string(raw)
		}
		return fmt.Errorf("report rejected with status %d: %s", resp.StatusCode, e.Message)
	}

	return nil
}
