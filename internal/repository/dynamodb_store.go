package repository

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

	"sales-assistant/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour

	defaultHistoryLimit = 50
)

// ErrSessionExists is returned by CreateSession when the id is taken.
var ErrSessionExists = errors.New("repository: session already exists")

// dynamodbAPI is the subset of *dynamodb.Client used by DynamoStore.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// sessionItem is the META# record of a session partition.
type sessionItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	SessionID string    `dynamodbav:"sessionId"`
	Title     string    `dynamodbav:"title,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	UpdatedAt time.Time `dynamodbav:"updatedAt"`
	TTL       int64     `dynamodbav:"ttl"`
}

// messageItem is one MSG# record. Sort keys order messages chronologically.
type messageItem struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	ID        string    `dynamodbav:"id"`
	SessionID string    `dynamodbav:"sessionId"`
	Role      string    `dynamodbav:"role"`
	Content   string    `dynamodbav:"content"`
	Tag       string    `dynamodbav:"bookingTag,omitempty"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	TTL       int64     `dynamodbav:"ttl"`
}

// DynamoStore keeps sessions and their messages in a single table keyed by
// PK=SESSION#<id>. Items expire 30 days after the last write.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func NewDynamoStore(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func msgSK(ts time.Time, id string) string {
	return skPrefixMsg + ts.UTC().Format(time.RFC3339Nano) + "#" + id
}

func (s *DynamoStore) ttlValue() int64 {
	return s.now().Add(ttlDuration).Unix()
}

func (s *DynamoStore) key(sessionID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: skMeta},
	}
}

// CreateSession writes the session record, refusing to overwrite one.
func (s *DynamoStore) CreateSession(ctx context.Context, sess domain.Session) error {
	if sess.ID == "" {
		return errors.New("repository: CreateSession: session id is required")
	}
	item, err := attributevalue.MarshalMap(sessionItem{
		PK:        sessionPK(sess.ID),
		SK:        skMeta,
		SessionID: sess.ID,
		Title:     sess.Title,
		CreatedAt: sess.CreatedAt.UTC(),
		UpdatedAt: sess.UpdatedAt.UTC(),
		TTL:       s.ttlValue(),
	})
	if err != nil {
		return fmt.Errorf("repository: CreateSession marshal: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrSessionExists
		}
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return nil
}

// GetSession reads the session record. found is false when it does not exist.
func (s *DynamoStore) GetSession(ctx context.Context, sessionID string) (domain.Session, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(sessionID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, false, nil
	}
	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return domain.Session{}, false, fmt.Errorf("repository: GetSession unmarshal: %w", err)
	}
	return domain.Session{
		ID:        item.SessionID,
		Title:     item.Title,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}, true, nil
}

// SetSessionTitle sets the title of an existing session.
func (s *DynamoStore) SetSessionTitle(ctx context.Context, sessionID, title string, at time.Time) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 s.key(sessionID),
		UpdateExpression:    aws.String("SET title = :title, updatedAt = :updated, #ttl = :ttl"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl": "ttl",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":title":   &types.AttributeValueMemberS{Value: title},
			":updated": &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339Nano)},
			":ttl":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", s.ttlValue())},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetSessionTitle: %w", err)
	}
	return nil
}

// AppendMessage writes the message and touches the session's updatedAt in
// one transaction.
func (s *DynamoStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	if msg.SessionID == "" || msg.ID == "" {
		return errors.New("repository: AppendMessage: session id and message id are required")
	}
	ttl := s.ttlValue()
	item, err := attributevalue.MarshalMap(messageItem{
		PK:        sessionPK(msg.SessionID),
		SK:        msgSK(msg.CreatedAt, msg.ID),
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Role:      msg.Role,
		Content:   msg.Content,
		Tag:       msg.BookingTag,
		CreatedAt: msg.CreatedAt.UTC(),
		TTL:       ttl,
	})
	if err != nil {
		return fmt.Errorf("repository: AppendMessage marshal: %w", err)
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(s.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName:           aws.String(s.tableName),
					Key:                 s.key(msg.SessionID),
					UpdateExpression:    aws.String("SET updatedAt = :updated, #ttl = :ttl"),
					ConditionExpression: aws.String("attribute_exists(PK)"),
					ExpressionAttributeNames: map[string]string{
						"#ttl": "ttl",
					},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":updated": &types.AttributeValueMemberS{Value: msg.CreatedAt.UTC().Format(time.RFC3339Nano)},
						":ttl":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", ttl)},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: AppendMessage: %w", err)
	}
	return nil
}

// History returns up to limit of the most recent messages in chronological
// order.
func (s *DynamoStore) History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	out, err := s.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Newest first so the limit keeps the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: History query: %w", err)
	}

	var items []messageItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, fmt.Errorf("repository: History unmarshal: %w", err)
	}
	msgs := make([]domain.Message, len(items))
	for i, item := range items {
		msgs[len(items)-1-i] = domain.Message{
			ID:         item.ID,
			SessionID:  item.SessionID,
			Role:       item.Role,
			Content:    item.Content,
			CreatedAt:  item.CreatedAt,
			BookingTag: item.Tag,
		}
	}
	return msgs, nil
}
