// Package dynamo implements the report store on Amazon DynamoDB.
package dynamo

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// LocalEndpoint is the DynamoDB Local address used by the local stack.
const LocalEndpoint = "http://dynamo-local:8000"

// localMarker in a reports table name selects LocalEndpoint.
const localMarker = "local"

// ClientConfig selects how the DynamoDB client connects.
type ClientConfig struct {
	// Region overrides the region from the environment when set.
	Region string
	// Endpoint overrides the service endpoint when set.
	Endpoint string
	// ReportsTable is inspected for the local marker when Endpoint is empty.
	ReportsTable string
}

// ResolveEndpoint returns explicit when set, LocalEndpoint when the reports
// table name contains "local" in any case, and "" for the default AWS endpoint.
func ResolveEndpoint(explicit, reportsTable string) string {
	if explicit != "" {
		return explicit
	}
	if strings.Contains(strings.ToLower(reportsTable), localMarker) {
		return LocalEndpoint
	}
	return ""
}

// NewClient builds a DynamoDB client from the default AWS configuration chain.
// Plain-HTTP endpoints get static dummy credentials, which DynamoDB Local
// accepts.
func NewClient(ctx context.Context, cfg ClientConfig) (*dynamodb.Client, error) {
	endpoint := ResolveEndpoint(cfg.Endpoint, cfg.ReportsTable)

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if strings.HasPrefix(endpoint, "http://") {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
		if cfg.Region == "" {
			opts = append(opts, config.WithDefaultRegion("us-east-1"))
		}
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
