package testcontainers

import (
	"context"
	"fmt"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DynamoDBConfig holds configuration for the DynamoDB Local container.
type DynamoDBConfig struct {
	// ContainerName is the name of the container (optional)
	ContainerName string
}

// StartDynamoDB starts DynamoDB Local in memory and returns the container and
// its http endpoint.
func StartDynamoDB(ctx context.Context, config *DynamoDBConfig) (testcontainers.Container, string, error) {
	if config == nil {
		config = &DynamoDBConfig{}
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:2.5.2",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
			WaitingFor:   wait.ForListeningPort("8000/tcp"),
			Name:         config.ContainerName,
		},
		Started: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to start DynamoDB Local container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", terminate(ctx, container, fmt.Errorf("failed to get container host: %w", err))
	}

	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		return nil, "", terminate(ctx, container, fmt.Errorf("failed to get container port: %w", err))
	}

	return container, fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}
