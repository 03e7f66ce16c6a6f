// Package notify publishes report events to RabbitMQ.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/pkg/mq"
)

// EventReportCreated is the AMQP type of a stored report event.
const EventReportCreated = "report.created"

// DefaultTimeout bounds one publish, retries included.
const DefaultTimeout = 2 * time.Second

// ReportEvent is the JSON body of a report.created message.
type ReportEvent struct {
	Station string      `json:"station"`
	Date    string      `json:"date"`
	Battery json.Number `json:"battery"`
	Panel   json.Number `json:"panel"`
}

// PublisherConfig holds the configuration for a Publisher.
type PublisherConfig struct {
	MQ     mq.PublisherInterface
	Logger *slog.Logger
	// Timeout defaults to DefaultTimeout.
	Timeout time.Duration
}

// Publisher turns stored reports into report.created messages. Failures
// are logged and never reach the caller.
type Publisher struct {
	mq      mq.PublisherInterface
	logger  *slog.Logger
	timeout time.Duration
}

// NewPublisher validates cfg and returns a Publisher.
func NewPublisher(cfg *PublisherConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, errors.New("publisher config cannot be nil")
	}
	if cfg.MQ == nil {
		return nil, errors.New("mq publisher cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Publisher{
		mq:      cfg.MQ,
		logger:  cfg.Logger,
		timeout: timeout,
	}, nil
}

// ReportCreated publishes r and waits at most the configured timeout.
func (p *Publisher) ReportCreated(ctx context.Context, r report.Report) {
	body, err := json.Marshal(ReportEvent{
		Station: r.Station,
		Date:    r.Date,
		Battery: r.Battery,
		Panel:   r.Panel,
	})
	if err != nil {
		p.logger.Error("failed to encode report event", "error", err, "station", r.Station)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	id := uuid.NewString()
	if err := p.mq.Publish(ctx, mq.Message{ID: id, Type: EventReportCreated, Body: body}); err != nil {
		p.logger.Warn("failed to publish report event",
			"error", err,
			"message_id", id,
			"station", r.Station,
			"date", r.Date,
		)
		return
	}

	p.logger.Debug("report event published", "message_id", id, "station", r.Station, "date", r.Date)
}

// Close closes the underlying MQ publisher.
func (p *Publisher) Close() error {
	return p.mq.Close()
}
