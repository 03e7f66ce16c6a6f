package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"procodus.dev/voltage/internal/report"
	"procodus.dev/voltage/internal/store"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Attribute names of both tables.
const (
	attrStation = "station"
	attrDate    = "date"
	attrBattery = "battery"
	attrPanel   = "panel"
)

// item is the stored shape of a report. Voltages are DynamoDB numbers so
// the submitted decimal is kept exactly.
type item struct {
	Station string                `dynamodbav:"station"`
	Date    string                `dynamodbav:"date"`
	Battery attributevalue.Number `dynamodbav:"battery"`
	Panel   attributevalue.Number `dynamodbav:"panel"`
}

func toItem(r report.Report) item {
	return item{
		Station: r.Station,
		Date:    r.Date,
		Battery: attributevalue.Number(r.Battery),
		Panel:   attributevalue.Number(r.Panel),
	}
}

func (i item) report() report.Report {
	return report.Report{
		Station: i.Station,
		Date:    i.Date,
		Battery: json.Number(i.Battery),
		Panel:   json.Number(i.Panel),
	}
}

// Config holds the configuration for a Store.
type Config struct {
	Client           API
	ReportsTable     string
	LastReportsTable string
}

// Store is a store.Store backed by two DynamoDB tables.
type Store struct {
	client           API
	reportsTable     string
	lastReportsTable string
}

// New validates cfg and returns a Store.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Client == nil {
		return nil, errors.New("dynamodb client cannot be nil")
	}
	if cfg.ReportsTable == "" {
		return nil, errors.New("reports table name cannot be empty")
	}
	if cfg.LastReportsTable == "" {
		return nil, errors.New("last reports table name cannot be empty")
	}

	return &Store{
		client:           cfg.Client,
		reportsTable:     cfg.ReportsTable,
		lastReportsTable: cfg.LastReportsTable,
	}, nil
}

// PutReport implements store.Store.
func (s *Store) PutReport(ctx context.Context, r report.Report) error {
	av, err := attributevalue.MarshalMap(toItem(r))
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.reportsTable),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put report in %s: %w", s.reportsTable, err)
	}
	return nil
}

// UpdateLastReport implements store.Store.
func (s *Store) UpdateLastReport(ctx context.Context, r report.Report) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.lastReportsTable),
		Key:              stationKey(r.Station),
		UpdateExpression: aws.String("SET #date = :date, #battery = :battery, #panel = :panel"),
		ExpressionAttributeNames: map[string]string{
			"#date":    attrDate,
			"#battery": attrBattery,
			"#panel":   attrPanel,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":date":    &types.AttributeValueMemberS{Value: r.Date},
			":battery": &types.AttributeValueMemberN{Value: r.Battery.String()},
			":panel":   &types.AttributeValueMemberN{Value: r.Panel.String()},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update last report in %s: %w", s.lastReportsTable, err)
	}
	return nil
}

// GetLastReport implements store.Store.
func (s *Store) GetLastReport(ctx context.Context, station string) (report.Report, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.lastReportsTable),
		Key:       stationKey(station),
	})
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to get last report from %s: %w", s.lastReportsTable, err)
	}
	if out.Item == nil {
		return report.Report{}, store.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return report.Report{}, fmt.Errorf("failed to unmarshal last report: %w", err)
	}
	return it.report(), nil
}

// ScanLastReports implements store.Store. DynamoDB returns scan pages in
// hash order, not by station.
func (s *Store) ScanLastReports(ctx context.Context, after *store.Cursor, limit int) (store.Page, error) {
	in := &dynamodb.ScanInput{
		TableName: aws.String(s.lastReportsTable),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit)) //nolint:gosec // page sizes are small
	}
	if after != nil {
		in.ExclusiveStartKey = stationKey(after.Station)
	}

	out, err := s.client.Scan(ctx, in)
	if err != nil {
		return store.Page{}, fmt.Errorf("failed to scan %s: %w", s.lastReportsTable, err)
	}

	return toPage(out.Items, out.LastEvaluatedKey)
}

// QueryReports implements store.Store.
func (s *Store) QueryReports(ctx context.Context, q store.Query) (store.Page, error) {
	keyCondition := "#station = :station"
	names := map[string]string{"#station": attrStation}
	values := map[string]types.AttributeValue{
		":station": &types.AttributeValueMemberS{Value: q.Station},
	}
	if q.StartDate != "" {
		keyCondition += " AND #date >= :start_date"
		names["#date"] = attrDate
		values[":start_date"] = &types.AttributeValueMemberS{Value: q.StartDate}
	}

	in := &dynamodb.QueryInput{
		TableName:                 aws.String(s.reportsTable),
		KeyConditionExpression:    aws.String(keyCondition),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	}
	if q.Limit > 0 {
		in.Limit = aws.Int32(int32(q.Limit)) //nolint:gosec // page sizes are small
	}
	if q.After != nil {
		in.ExclusiveStartKey = reportKey(q.After.Station, q.After.Date)
	}

	out, err := s.client.Query(ctx, in)
	if err != nil {
		return store.Page{}, fmt.Errorf("failed to query %s: %w", s.reportsTable, err)
	}

	return toPage(out.Items, out.LastEvaluatedKey)
}

// DeleteReport implements store.Store.
func (s *Store) DeleteReport(ctx context.Context, station, date string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.reportsTable),
		Key:       reportKey(station, date),
	})
	if err != nil {
		return fmt.Errorf("failed to delete report from %s: %w", s.reportsTable, err)
	}
	return nil
}

// DeleteLastReport implements store.Store.
func (s *Store) DeleteLastReport(ctx context.Context, station string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.lastReportsTable),
		Key:       stationKey(station),
	})
	if err != nil {
		return fmt.Errorf("failed to delete last report from %s: %w", s.lastReportsTable, err)
	}
	return nil
}

func stationKey(station string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrStation: &types.AttributeValueMemberS{Value: station},
	}
}

func reportKey(station, date string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrStation: &types.AttributeValueMemberS{Value: station},
		attrDate:    &types.AttributeValueMemberS{Value: date},
	}
}

func toPage(items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) (store.Page, error) {
	var its []item
	if err := attributevalue.UnmarshalListOfMaps(items, &its); err != nil {
		return store.Page{}, fmt.Errorf("failed to unmarshal reports: %w", err)
	}

	page := store.Page{Reports: make([]report.Report, len(its))}
	for i, it := range its {
		page.Reports[i] = it.report()
	}

	if len(lastKey) > 0 {
		c, err := keyToCursor(lastKey)
		if err != nil {
			return store.Page{}, err
		}
		page.Next = c
	}
	return page, nil
}

func keyToCursor(key map[string]types.AttributeValue) (*store.Cursor, error) {
	station, ok := key[attrStation].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("last evaluated key has no string %q attribute", attrStation)
	}

	c := &store.Cursor{Station: station.Value}
	if date, ok := key[attrDate].(*types.AttributeValueMemberS); ok {
		c.Date = date.Value
	}
	return c, nil
}

var _ store.Store = (*Store)(nil)
