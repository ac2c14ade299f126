package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// geoPoint stores a location as a GeoJSON Point: coordinates are [longitude, latitude].
type geoPoint struct {
	Type        string    `dynamodbav:"type"`
	Coordinates []float64 `dynamodbav:"coordinates"`
}

type conversationItem struct {
	SenderID    string    `dynamodbav:"senderId"`
	State       string    `dynamodbav:"state"`
	Description *string   `dynamodbav:"description,omitempty"`
	Location    *geoPoint `dynamodbav:"location,omitempty"`
	Version     int64     `dynamodbav:"version"`
	CreatedAt   string    `dynamodbav:"createdAt"`
	UpdatedAt   string    `dynamodbav:"updatedAt"`
}

// DynamoStore persists conversations in a DynamoDB table keyed by senderId.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	now       Clock
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoStore {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *DynamoStore) Get(ctx context.Context, senderID string) (Conversation, error) {
	conv, found, err := s.load(ctx, senderID)
	if err != nil || found {
		return conv, err
	}

	stamp := s.now().UTC()
	item, err := attributevalue.MarshalMap(conversationItem{
		SenderID:  senderID,
		State:     StateAwaitingDescription.String(),
		CreatedAt: stamp.Format(time.RFC3339Nano),
		UpdatedAt: stamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation: failed to marshal conversation: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(senderId)"),
	})
	if err != nil {
		if !isConditionalFailure(err) {
			return Conversation{}, fmt.Errorf("conversation: failed to create conversation: %w", err)
		}
		// Lost the creation race; the winner's record is authoritative.
		s.logger.Debug("conversation created concurrently", "sender_id", senderID)
		conv, found, err = s.load(ctx, senderID)
		if err != nil {
			return Conversation{}, err
		}
		if !found {
			return Conversation{}, ErrConversationNotFound
		}
		return conv, nil
	}
	return NewConversation(senderID, stamp), nil
}

func (s *DynamoStore) SetState(ctx context.Context, senderID string, state State) error {
	return s.update(ctx, senderID, "SET #s = :s, #u = :u ADD #v :one",
		map[string]string{"#s": "state", "#u": "updatedAt", "#v": "version"},
		map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: state.String()},
		})
}

func (s *DynamoStore) SetDescription(ctx context.Context, senderID string, description string) error {
	return s.update(ctx, senderID, "SET #d = :d, #u = :u ADD #v :one",
		map[string]string{"#d": "description", "#u": "updatedAt", "#v": "version"},
		map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: description},
		})
}

func (s *DynamoStore) SetLocation(ctx context.Context, senderID string, loc Location) error {
	point, err := attributevalue.Marshal(toGeoPoint(loc))
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal location: %w", err)
	}
	return s.update(ctx, senderID, "SET #l = :l, #u = :u ADD #v :one",
		map[string]string{"#l": "location", "#u": "updatedAt", "#v": "version"},
		map[string]types.AttributeValue{":l": point})
}

// Finalize clears the captured fields and returns the item as it was before the update.
func (s *DynamoStore) Finalize(ctx context.Context, senderID string) (Conversation, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              s.key(senderID),
		UpdateExpression: aws.String("SET #s = :s, #u = :u REMOVE #d, #l ADD #v :one"),
		ExpressionAttributeNames: map[string]string{
			"#s": "state", "#u": "updatedAt", "#d": "description", "#l": "location", "#v": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":   &types.AttributeValueMemberS{Value: StateComplete.String()},
			":u":   &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
		ConditionExpression: aws.String("attribute_exists(senderId)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		if isConditionalFailure(err) {
			return Conversation{}, ErrConversationNotFound
		}
		return Conversation{}, fmt.Errorf("conversation: failed to finalize %s: %w", senderID, err)
	}
	return decodeConversation(out.Attributes)
}

func (s *DynamoStore) load(ctx context.Context, senderID string) (Conversation, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(senderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Conversation{}, false, fmt.Errorf("conversation: failed to fetch conversation: %w", err)
	}
	if out.Item == nil {
		return Conversation{}, false, nil
	}
	conv, err := decodeConversation(out.Item)
	return conv, err == nil, err
}

func (s *DynamoStore) update(ctx context.Context, senderID, expression string, names map[string]string, values map[string]types.AttributeValue) error {
	values[":u"] = &types.AttributeValueMemberS{Value: s.now().UTC().Format(time.RFC3339Nano)}
	values[":one"] = &types.AttributeValueMemberN{Value: "1"}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       s.key(senderID),
		UpdateExpression:          aws.String(expression),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String("attribute_exists(senderId)"),
	})
	if err != nil {
		if isConditionalFailure(err) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("conversation: failed to update conversation %s: %w", senderID, err)
	}
	return nil
}

func (s *DynamoStore) key(senderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"senderId": &types.AttributeValueMemberS{Value: senderID},
	}
}

func decodeConversation(attrs map[string]types.AttributeValue) (Conversation, error) {
	if len(attrs) == 0 {
		return Conversation{}, ErrConversationNotFound
	}
	var item conversationItem
	if err := attributevalue.UnmarshalMap(attrs, &item); err != nil {
		return Conversation{}, fmt.Errorf("conversation: failed to decode conversation: %w", err)
	}
	state, err := ParseState(item.State)
	if err != nil {
		return Conversation{}, err
	}
	conv := Conversation{
		SenderID:    item.SenderID,
		State:       state,
		Description: item.Description,
		Version:     item.Version,
	}
	if item.Location != nil && len(item.Location.Coordinates) == 2 {
		conv.Location = &Location{
			Latitude:  item.Location.Coordinates[1],
			Longitude: item.Location.Coordinates[0],
		}
	}
	conv.CreatedAt, _ = time.Parse(time.RFC3339Nano, item.CreatedAt)
	conv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, item.UpdatedAt)
	return conv, nil
}

func toGeoPoint(loc Location) geoPoint {
	return geoPoint{Type: "Point", Coordinates: []float64{loc.Longitude, loc.Latitude}}
}

func isConditionalFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
