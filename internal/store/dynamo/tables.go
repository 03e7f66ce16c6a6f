package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// tableReadyTimeout bounds the wait for a new table to become ACTIVE.
const tableReadyTimeout = 2 * time.Minute

// TablesAPI is the subset of the DynamoDB client used for provisioning.
type TablesAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// EnsureTables creates the reports table (station hash key, date range key)
// and the last-reports table (station hash key) when they do not exist.
// Existing tables are left untouched.
func EnsureTables(ctx context.Context, client TablesAPI, reportsTable, lastReportsTable string, log *slog.Logger) error {
	if err := ensureTable(ctx, client, reportsTable, true, log); err != nil {
		return err
	}
	return ensureTable(ctx, client, lastReportsTable, false, log)
}

func ensureTable(ctx context.Context, client TablesAPI, name string, withDate bool, log *slog.Logger) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err == nil {
		log.Info("table already exists", "table", name)
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to describe table %s: %w", name, err)
	}

	attrs := []types.AttributeDefinition{
		{AttributeName: aws.String(attrStation), AttributeType: types.ScalarAttributeTypeS},
	}
	schema := []types.KeySchemaElement{
		{AttributeName: aws.String(attrStation), KeyType: types.KeyTypeHash},
	}
	if withDate {
		attrs = append(attrs, types.AttributeDefinition{AttributeName: aws.String(attrDate), AttributeType: types.ScalarAttributeTypeS})
		schema = append(schema, types.KeySchemaElement{AttributeName: aws.String(attrDate), KeyType: types.KeyTypeRange})
	}

	_, err = client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:            aws.String(name),
		AttributeDefinitions: attrs,
		KeySchema:            schema,
		BillingMode:          types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableReadyTimeout); err != nil {
		return fmt.Errorf("failed waiting for table %s: %w", name, err)
	}

	log.Info("table created", "table", name)
	return nil
}
