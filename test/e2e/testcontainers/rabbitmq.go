// Package testcontainers starts the DynamoDB Local, PostgreSQL and RabbitMQ
// containers used by the e2e suites.
package testcontainers

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RabbitMQConfig holds configuration for RabbitMQ test container.
type RabbitMQConfig struct {
	// User is the RabbitMQ username (default: guest)
	User string
	// Password is the RabbitMQ password (default: guest)
	Password string
	// ContainerName is the name of the container (optional)
	ContainerName string
}

// StartRabbitMQ starts a RabbitMQ container for testing and returns the container and connection URL.
func StartRabbitMQ(ctx context.Context, config *RabbitMQConfig) (testcontainers.Container, string, error) {
	if config == nil {
		config = &RabbitMQConfig{}
	}
	user, password := config.User, config.Password
	if user == "" {
		user = "guest"
	}
	if password == "" {
		password = "guest"
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5672/tcp"),
				wait.ForLog("Server startup complete"),
			),
			Env: map[string]string{
				"RABBITMQ_DEFAULT_USER": user,
				"RABBITMQ_DEFAULT_PASS": password,
			},
			Name: config.ContainerName,
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start RabbitMQ container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", terminate(ctx, container, fmt.Errorf("failed to get container host: %w", err))
	}

	port, err := container.MappedPort(ctx, "5672")
	if err != nil {
		return nil, "", terminate(ctx, container, fmt.Errorf("failed to get container port: %w", err))
	}

	return container, fmt.Sprintf("amqp://%s:%s@%s:%s/", user, password, host, port.Port()), nil
}

// NextDelivery waits for one message on a durable queue and acknowledges it.
func NextDelivery(ctx context.Context, url, queue string, timeout time.Duration) (amqp.Delivery, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return amqp.Delivery{}, fmt.Errorf("failed to connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return amqp.Delivery{}, fmt.Errorf("failed to open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return amqp.Delivery{}, fmt.Errorf("failed to declare queue: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return amqp.Delivery{}, fmt.Errorf("failed to consume: %w", err)
	}

	select {
	case d := <-deliveries:
		if err := d.Ack(false); err != nil {
			return amqp.Delivery{}, fmt.Errorf("failed to ack: %w", err)
		}
		return d, nil
	case <-time.After(timeout):
		return amqp.Delivery{}, fmt.Errorf("no message on %s within %s", queue, timeout)
	case <-ctx.Done():
		return amqp.Delivery{}, ctx.Err()
	}
}

func terminate(ctx context.Context, container testcontainers.Container, err error) error {
	if termErr := container.Terminate(ctx); termErr != nil {
		return fmt.Errorf("%w (cleanup error: %w)", err, termErr)
	}
	return err
}
