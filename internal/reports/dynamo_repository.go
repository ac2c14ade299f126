package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

const (
	reportKind = "report"
	// createdAtLayout is fixed width so createdAt sorts lexically in an index.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type geoPoint struct {
	Type        string    `dynamodbav:"type"`
	Coordinates []float64 `dynamodbav:"coordinates"`
}

type reportItem struct {
	ID           string   `dynamodbav:"id"`
	Kind         string   `dynamodbav:"kind"`
	SenderID     string   `dynamodbav:"senderId"`
	Description  string   `dynamodbav:"description"`
	Location     geoPoint `dynamodbav:"location"`
	ImageLocator string   `dynamodbav:"imagePath"`
	CreatedAt    string   `dynamodbav:"createdAt"`
}

// DynamoRepository stores reports in a DynamoDB table keyed by id.
type DynamoRepository struct {
	client         dynamoAPI
	tableName      string
	createdAtIndex string
}

var _ Repository = (*DynamoRepository)(nil)

// DynamoOption customizes a DynamoRepository.
type DynamoOption func(*DynamoRepository)

// WithCreatedAtIndex makes ListRecent query a global secondary index with
// partition key "kind" and sort key "createdAt" instead of scanning the table.
func WithCreatedAtIndex(name string) DynamoOption {
	return func(r *DynamoRepository) {
		r.createdAtIndex = strings.TrimSpace(name)
	}
}

func NewDynamoRepository(client dynamoAPI, tableName string, opts ...DynamoOption) *DynamoRepository {
	if client == nil {
		panic("reports: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("reports: table name cannot be empty")
	}
	r := &DynamoRepository{client: client, tableName: tableName}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert writes the report once; a repeated id is treated as already stored.
func (r *DynamoRepository) Insert(ctx context.Context, report conversation.Report) error {
	item, err := attributevalue.MarshalMap(toItem(report))
	if err != nil {
		return fmt.Errorf("reports: marshal report: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil
		}
		return fmt.Errorf("reports: put report: %w", err)
	}
	return nil
}

func (r *DynamoRepository) Get(ctx context.Context, id string) (conversation.Report, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return conversation.Report{}, fmt.Errorf("reports: get report: %w", err)
	}
	if out.Item == nil {
		return conversation.Report{}, ErrNotFound
	}
	var item reportItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return conversation.Report{}, fmt.Errorf("reports: decode report: %w", err)
	}
	return fromItem(item), nil
}

// ListRecent reads newest first from the createdAt index when one is
// configured. Without it the whole table is scanned and sorted in memory.
func (r *DynamoRepository) ListRecent(ctx context.Context, limit int) ([]conversation.Report, error) {
	limit = clampLimit(limit)
	if r.createdAtIndex != "" {
		return r.queryRecent(ctx, limit)
	}
	return r.scanRecent(ctx, limit)
}

func (r *DynamoRepository) queryRecent(ctx context.Context, limit int) ([]conversation.Report, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(r.createdAtIndex),
		KeyConditionExpression: aws.String("#kind = :kind"),
		ExpressionAttributeNames: map[string]string{
			"#kind": "kind",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":kind": &types.AttributeValueMemberS{Value: reportKind},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("reports: query recent reports: %w", err)
	}
	var items []reportItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("reports: decode reports: %w", err)
	}
	reports := make([]conversation.Report, 0, len(items))
	for _, item := range items {
		reports = append(reports, fromItem(item))
	}
	return reports, nil
}

func (r *DynamoRepository) scanRecent(ctx context.Context, limit int) ([]conversation.Report, error) {
	var (
		out   []conversation.Report
		start map[string]types.AttributeValue
	)
	for {
		page, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.tableName),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("reports: scan reports: %w", err)
		}
		var items []reportItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("reports: decode reports: %w", err)
		}
		for _, item := range items {
			out = append(out, fromItem(item))
		}
		if len(page.LastEvaluatedKey) == 0 {
			break
		}
		start = page.LastEvaluatedKey
	}
	return newestFirst(out, limit), nil
}

func toItem(report conversation.Report) reportItem {
	return reportItem{
		ID:           report.ID,
		Kind:         reportKind,
		SenderID:     report.SenderID,
		Description:  report.Description,
		Location:     geoPoint{Type: "Point", Coordinates: []float64{report.Location.Longitude, report.Location.Latitude}},
		ImageLocator: report.ImageLocator,
		CreatedAt:    report.CreatedAt.UTC().Format(createdAtLayout),
	}
}

func fromItem(item reportItem) conversation.Report {
	report := conversation.Report{
		ID:           item.ID,
		SenderID:     item.SenderID,
		Description:  item.Description,
		ImageLocator: item.ImageLocator,
	}
	if len(item.Location.Coordinates) == 2 {
		report.Location = conversation.Location{
			Latitude:  item.Location.Coordinates[1],
			Longitude: item.Location.Coordinates[0],
		}
	}
	report.CreatedAt, _ = time.Parse(time.RFC3339Nano, item.CreatedAt)
	return report
}
