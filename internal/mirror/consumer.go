// Package mirror replays report.created events into a report store, keeping
// a second backend (typically PostgreSQL) in step with the API's store.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/voltage/internal/notify"
	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store"
)

const (
	// reconnectDelay is the wait between connection attempts.
	reconnectDelay = 5 * time.Second

	defaultPrefetch = 16
)

// ErrInvalidEvent marks events that can never be applied.
var ErrInvalidEvent = errors.New("invalid report event")

// Consumer consumes report events from RabbitMQ and writes them to a store.
type Consumer struct {
	logger    *slog.Logger
	store     store.Store
	url       string
	queueName string
	prefetch  int

	m    sync.Mutex
	conn *amqp.Connection
	done chan struct{}
}

// ConsumerConfig holds the configuration for the Consumer.
type ConsumerConfig struct {
	Logger      *slog.Logger
	Store       store.Store
	RabbitMQURL string
	QueueName   string
	// Prefetch bounds unacknowledged deliveries; defaults to 16.
	Prefetch int
}

// NewConsumer creates a new Consumer instance.
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}

	if cfg.RabbitMQURL == "" {
		return nil, errors.New("rabbitmq URL cannot be empty")
	}

	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}

	return &Consumer{
		logger:    cfg.Logger.With("component", "mirror", "queue", cfg.QueueName),
		store:     cfg.Store,
		url:       cfg.RabbitMQURL,
		queueName: cfg.QueueName,
		prefetch:  prefetch,
		done:      make(chan struct{}),
	}, nil
}

// Run consumes until ctx is canceled or Stop is called, reconnecting after
// broker failures.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("starting consumer")

	for {
		err := c.consume(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping consumer")
			return nil
		case <-c.done:
			c.logger.Info("consumer stopped")
			return nil
		default:
		}

		c.logger.Warn("consumer disconnected, reconnecting", "error", err, "delay", reconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// Stop closes the broker connection and ends Run.
func (c *Consumer) Stop() error {
	c.m.Lock()
	defer c.m.Unlock()

	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}
	return nil
}

func (c *Consumer) consume(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.m.Lock()
	c.conn = conn
	c.m.Unlock()
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	// Same declaration as the publisher
	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("consumer connected, waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.HandleDelivery(ctx, delivery)
		}
	}
}

// HandleDelivery applies one delivery. Invalid events are acknowledged and
// dropped; store failures are requeued.
func (c *Consumer) HandleDelivery(ctx context.Context, delivery amqp.Delivery) {
	r, err := Decode(delivery)
	if err != nil {
		c.logger.Error("dropping report event", "error", err, "message_id", delivery.MessageId)
		// Acknowledge message even on parse error to avoid reprocessing
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack message", "error", ackErr)
		}
		return
	}

	if err := Apply(ctx, c.store, r); err != nil {
		c.logger.Error("failed to mirror report", "station", r.Station, "date", r.Date, "error", err)
		// Nack the message so it can be reprocessed
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
		return
	}

	c.logger.Debug("report mirrored", "station", r.Station, "date", r.Date)
}

// Decode parses a report.created delivery into a report.
func Decode(delivery amqp.Delivery) (report.Report, error) {
	if delivery.Type != "" && delivery.Type != notify.EventReportCreated {
		return report.Report{}, fmt.Errorf("%w: unexpected type %q", ErrInvalidEvent, delivery.Type)
	}

	var event notify.ReportEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		return report.Report{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	r := report.Report{
		Station: report.NormalizeStation(event.Station),
		Date:    event.Date,
		Battery: event.Battery,
		Panel:   event.Panel,
	}

	if r.Station == "" {
		return report.Report{}, fmt.Errorf("%w: missing station", ErrInvalidEvent)
	}
	if _, err := r.Day(); err != nil {
		return report.Report{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	if !report.ValidDecimal(r.Battery) || !report.ValidDecimal(r.Panel) {
		return report.Report{}, fmt.Errorf("%w: voltages must be numbers", ErrInvalidEvent)
	}

	return r, nil
}

// Apply writes r to the reports table and makes it the station's last report.
func Apply(ctx context.Context, s store.Store, r report.Report) error {
	return store.Record(ctx, s, r)
}
