// Package mock provides mock implementations of the mq package interfaces for testing.
package mock

import (
	"context"
	"sync"

	"procodus.dev/voltage/pkg/mq"
)

// MockPublisher is a mock implementation of mq.PublisherInterface.
// It records published messages and allows configuring failures.
type MockPublisher struct {
	mu sync.Mutex

	// PublishFunc is called when Publish is invoked. If nil, returns PublishError.
	PublishFunc func(ctx context.Context, msg mq.Message) error
	// PublishError is returned by Publish if PublishFunc is nil.
	PublishError error
	// Published tracks every message passed to Publish.
	Published []mq.Message

	// CloseError is returned by Close.
	CloseError error
	// CloseCalls tracks the number of times Close was called.
	CloseCalls int
}

// NewMockPublisher creates a MockPublisher that accepts every message.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{Published: make([]mq.Message, 0)}
}

// Publish implements mq.PublisherInterface.
func (m *MockPublisher) Publish(ctx context.Context, msg mq.Message) error {
	m.mu.Lock()
	m.Published = append(m.Published, msg)
	fn, err := m.PublishFunc, m.PublishError
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, msg)
	}
	return err
}

// Close implements mq.PublisherInterface.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	return m.CloseError
}

// Messages returns a copy of the published messages.
func (m *MockPublisher) Messages() []mq.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]mq.Message, len(m.Published))
	copy(out, m.Published)
	return out
}

var _ mq.PublisherInterface = (*MockPublisher)(nil)
