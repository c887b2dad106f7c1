package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	pkPrefixDelivery = "DELIVERY#"
	skDelivery       = "PROCESSED#"
	defaultTTL       = 24 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Client records processed webhook deliveries in a DynamoDB table so that
// redeliveries are recognized across Lambda instances.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// New creates a new repository Client. A non-positive ttl uses one day.
func New(api dynamodbAPI, tableName string, ttl time.Duration) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Client{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// deliveryPK returns the partition key for a delivery key.
func deliveryPK(key string) string {
	return pkPrefixDelivery + key
}

// MarkProcessed writes the delivery record only if it does not exist yet and
// reports whether this call created it.
func (c *Client) MarkProcessed(ctx context.Context, key string) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, errors.New("repository: MarkProcessed: key is required")
	}

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                deliveryItem(key, c.now().UTC(), c.ttl),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return false, fmt.Errorf("repository: MarkProcessed: %w", err)
	}
	return true, nil
}

func deliveryItem(key string, now time.Time, ttl time.Duration) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: deliveryPK(key)},
		"SK":          &types.AttributeValueMemberS{Value: skDelivery},
		"deliveryKey": &types.AttributeValueMemberS{Value: key},
		"processedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
		"ttl":         &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Add(ttl).Unix(), 10)},
	}
}
