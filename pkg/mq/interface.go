package mq

import "context"

// PublisherInterface defines the message queue operations used by the
// report event notifier. It enables mocking in handler tests.
type PublisherInterface interface {
	// Publish sends a message and waits for the broker confirmation.
	Publish(ctx context.Context, msg Message) error

	// Close shuts down the channel and connection.
	Close() error
}

var _ PublisherInterface = (*Publisher)(nil)
