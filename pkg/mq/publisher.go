// Package mq provides a RabbitMQ publisher with automatic reconnection and
// confirmed, retried delivery. Every publish waits for the confirm of its own
// delivery tag, so concurrent callers never see each other's confirms.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"procodus.dev/voltage/pkg/metrics"
)

const (
	// When reconnecting to the server after connection failure.
	reconnectDelay = 5 * time.Second

	// When setting up the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Initial backoff delay for Publish retries.
	initialBackoff = 100 * time.Millisecond

	// Maximum backoff delay for Publish retries.
	maxBackoff = 10 * time.Second

	// Backoff multiplier for exponential backoff.
	backoffMultiplier = 2

	// Maximum number of retry attempts before giving up.
	maxRetryAttempts = 5
)

var (
	errNotConnected  = errors.New("not connected to a server")
	errAlreadyClosed = errors.New("already closed: not connected to the server")
	errShutdown      = errors.New("publisher is shutting down")

	// ErrMaxRetriesExceeded is returned by Publish once every retry failed.
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// Message is one event handed to the broker.
type Message struct {
	// ID is copied to the AMQP message-id property.
	ID string
	// Type is copied to the AMQP type property, e.g. "report.created".
	Type string
	// Body is the JSON payload.
	Body []byte
}

// PublisherConfig holds the configuration for a Publisher.
type PublisherConfig struct {
	URL       string
	QueueName string
	Logger    *slog.Logger
	Metrics   *metrics.MQMetrics // Optional metrics
}

// Publisher is a RabbitMQ publisher that manages its connection in the
// background and waits for broker confirms on every message.
type Publisher struct {
	m               sync.Mutex
	log             *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan struct{}
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	queueName       string
	isReady         bool
	metrics         *metrics.MQMetrics
}

// NewPublisher validates cfg and starts connecting in the background.
// Publish calls made before the first connection succeeds wait with backoff.
func NewPublisher(cfg *PublisherConfig) (*Publisher, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.URL == "" {
		return nil, errors.New("broker URL cannot be empty")
	}
	if cfg.QueueName == "" {
		return nil, errors.New("queue name cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	p := &Publisher{
		log:       cfg.Logger.With("component", "mq", "queue", cfg.QueueName),
		queueName: cfg.QueueName,
		done:      make(chan struct{}),
		metrics:   cfg.Metrics,
	}
	go p.handleReconnect(cfg.URL)
	return p, nil
}

// QueueName returns the queue messages are routed to.
func (p *Publisher) QueueName() string {
	return p.queueName
}

// handleReconnect waits for a connection error on notifyConnClose and then
// keeps reconnecting until Close is called.
func (p *Publisher) handleReconnect(addr string) {
	for {
		p.setReady(false)
		p.log.Info("attempting to connect")

		if p.metrics != nil {
			p.metrics.ReconnectAttempts.Inc()
		}

		conn, err := p.connect(addr)
		if err != nil {
			p.log.Error("failed to connect, retrying", "error", err)

			select {
			case <-p.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := p.handleReInit(conn); done {
			return
		}
	}
}

func (p *Publisher) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if p.metrics != nil {
			p.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	p.m.Lock()
	p.connection = conn
	p.notifyConnClose = make(chan *amqp.Error, 1)
	p.connection.NotifyClose(p.notifyConnClose)
	p.m.Unlock()

	p.log.Info("connected")
	if p.metrics != nil {
		p.metrics.ConnectionStatus.Set(1)
	}
	return conn, nil
}

// handleReInit waits for a channel error and re-initializes the channel.
// It returns true once the publisher is closed.
func (p *Publisher) handleReInit(conn *amqp.Connection) bool {
	for {
		p.setReady(false)

		if err := p.init(conn); err != nil {
			p.log.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-p.done:
				return true
			case <-p.notifyConnClose:
				p.log.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-p.done:
			return true
		case <-p.notifyConnClose:
			p.log.Info("connection closed, reconnecting")
			return false
		case <-p.notifyChanClose:
			p.log.Info("channel closed, re-running init")
		}
	}
}

// init opens a confirming channel and declares the durable event queue.
func (p *Publisher) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		p.queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		return err
	}

	p.m.Lock()
	p.channel = ch
	p.notifyChanClose = make(chan *amqp.Error, 1)
	p.channel.NotifyClose(p.notifyChanClose)
	p.isReady = true
	p.m.Unlock()

	p.log.Info("publisher init done")
	return nil
}

func (p *Publisher) setReady(ready bool) {
	p.m.Lock()
	p.isReady = ready
	p.m.Unlock()
}

func (p *Publisher) ready() bool {
	p.m.Lock()
	defer p.m.Unlock()
	return p.isReady
}

// Publish sends msg and blocks until the broker confirms it. While the
// publisher is disconnected, or after a failed or nacked publish, it retries
// with exponential backoff and gives up with ErrMaxRetriesExceeded.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if p.metrics != nil {
		timer := prometheus.NewTimer(p.metrics.PushDuration.WithLabelValues(p.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		if attempt >= maxRetryAttempts {
			p.log.Error("maximum retry attempts exceeded", "max_attempts", maxRetryAttempts)
			p.countFailure("max_retries_exceeded")
			return ErrMaxRetriesExceeded
		}

		if attempt > 0 {
			select {
			case <-ctx.Done():
				p.countFailure("context_canceled")
				return ctx.Err()
			case <-p.done:
				return errShutdown
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
		}

		if !p.ready() {
			p.log.Info("not connected, waiting for reconnection", "backoff", backoff, "retry_count", attempt)
			continue
		}

		confirm, err := p.publishDeferred(ctx, msg)
		if err != nil {
			p.log.Error("publish failed, retrying with backoff", "error", err, "retry_count", attempt)
			continue
		}

		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			p.countFailure("context_canceled")
			return err
		}
		if !acked {
			// Also reached when the channel closed before the confirm arrived
			p.log.Warn("publish not acknowledged, retrying", "delivery_tag", confirm.DeliveryTag)
			continue
		}

		if p.metrics != nil {
			p.metrics.MessagesPushed.WithLabelValues(p.queueName).Inc()
		}
		p.log.Debug("publish confirmed", "delivery_tag", confirm.DeliveryTag, "retry_count", attempt)
		return nil
	}
}

// publishDeferred sends msg and returns the pending confirm of its delivery tag.
func (p *Publisher) publishDeferred(ctx context.Context, msg Message) (*amqp.DeferredConfirmation, error) {
	ch, err := p.readyChannel()
	if err != nil {
		return nil, err
	}
	return ch.PublishWithDeferredConfirmWithContext(ctx, "", p.queueName, false, false, publishing(msg))
}

// UnsafePublish sends msg without waiting for a broker confirm.
func (p *Publisher) UnsafePublish(ctx context.Context, msg Message) error {
	ch, err := p.readyChannel()
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		"",          // Exchange
		p.queueName, // Routing key
		false,       // Mandatory
		false,       // Immediate
		publishing(msg),
	)
}

func (p *Publisher) readyChannel() (*amqp.Channel, error) {
	p.m.Lock()
	defer p.m.Unlock()
	if !p.isReady {
		return nil, errNotConnected
	}
	return p.channel, nil
}

func publishing(msg Message) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.ID,
		Type:         msg.Type,
		Timestamp:    time.Now().UTC(),
		Body:         msg.Body,
	}
}

// Close stops reconnecting and shuts down the channel and connection.
func (p *Publisher) Close() error {
	p.m.Lock()
	defer p.m.Unlock()

	select {
	case <-p.done:
		return errAlreadyClosed
	default:
	}
	close(p.done)

	if p.metrics != nil {
		p.metrics.ConnectionStatus.Set(0)
	}

	p.isReady = false

	if p.channel != nil && !p.channel.IsClosed() {
		if err := p.channel.Close(); err != nil {
			return err
		}
	}
	if p.connection != nil && !p.connection.IsClosed() {
		return p.connection.Close()
	}
	return nil
}

func (p *Publisher) countFailure(reason string) {
	if p.metrics != nil {
		p.metrics.PushFailures.WithLabelValues(p.queueName, reason).Inc()
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * backoffMultiplier
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
