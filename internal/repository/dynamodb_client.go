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

	"whatsapp-bridge/internal/domain"
)

const (
	skPrefixTurn = "TURN#"
	skMeta       = "META#"
	ttlDuration  = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding archived transcripts.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// userPK returns the DynamoDB partition key for a user's transcript.
func userPK(userKey string) string {
	return "USER#" + userKey
}

// turnSK orders turns by time; seq keeps the two halves of one exchange apart.
func turnSK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%d", skPrefixTurn, ts.UTC().Format(time.RFC3339Nano), seq)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// NewTurn constructs an ArchivedTurn with keys and TTL set.
func NewTurn(userKey string, role domain.Role, content string, ts time.Time, seq int) domain.ArchivedTurn {
	return domain.ArchivedTurn{
		PK:      userPK(userKey),
		SK:      turnSK(ts, seq),
		UserKey: userKey,
		Role:    role,
		Content: content,
		Created: ts.UTC().Format(time.RFC3339),
		TTL:     ttlValue(),
	}
}

// RecordExchange writes the user turn, the assistant turn and the updated
// metadata in one transaction.
func (c *Client) RecordExchange(ctx context.Context, userKey, userText, assistantText string) error {
	if strings.TrimSpace(userKey) == "" {
		return errors.New("repository: RecordExchange: user key is required")
	}
	now := time.Now().UTC()
	user := NewTurn(userKey, domain.RoleUser, userText, now, 0)
	assistant := NewTurn(userKey, domain.RoleAssistant, assistantText, now, 1)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(user),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(assistant),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Update: &types.Update{
					TableName: aws.String(c.tableName),
					Key: map[string]types.AttributeValue{
						"PK": &types.AttributeValueMemberS{Value: userPK(userKey)},
						"SK": &types.AttributeValueMemberS{Value: skMeta},
					},
					UpdateExpression:         aws.String("SET userKey = :u, lastActivity = :now, #ttl = :ttl ADD exchanges :one"),
					ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":u":   &types.AttributeValueMemberS{Value: userKey},
						":now": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
						":ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(ttlValue(), 10)},
						":one": &types.AttributeValueMemberN{Value: "1"},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordExchange: %w", err)
	}
	return nil
}

// ListTurns queries the most recent archived turns for a user, returned in
// chronological order.
func (c *Client) ListTurns(ctx context.Context, userKey string, limit int) ([]domain.ArchivedTurn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userKey)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		// Read newest first so LIMIT favors the most recent turns.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: ListTurns query: %w", err)
	}

	turns := make([]domain.ArchivedTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTurns unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Meta returns the archive summary for a user; a user with no archive yields
// a zero summary.
func (c *Client) Meta(ctx context.Context, userKey string) (domain.ArchiveMeta, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userKey)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ArchiveMeta{}, fmt.Errorf("repository: Meta get item: %w", err)
	}
	meta := domain.ArchiveMeta{PK: userPK(userKey), SK: skMeta, UserKey: userKey}
	if out == nil || len(out.Item) == 0 {
		return meta, nil
	}

	exchanges, err := intAttr(out.Item, "exchanges")
	if err != nil {
		return domain.ArchiveMeta{}, fmt.Errorf("repository: Meta decode exchanges: %w", err)
	}
	meta.Exchanges = exchanges
	meta.LastActivity, _ = strAttr(out.Item, "lastActivity") // allow empty
	return meta, nil
}

// itemToTurn converts a DynamoDB attribute map to an ArchivedTurn.
func itemToTurn(item map[string]types.AttributeValue) (domain.ArchivedTurn, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.ArchivedTurn{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.ArchivedTurn{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ArchivedTurn{}, err
	}
	content, _ := strAttr(item, "content") // allow empty
	userKey, _ := strAttr(item, "userKey")
	created, _ := strAttr(item, "created")

	return domain.ArchivedTurn{
		PK:      pk,
		SK:      sk,
		UserKey: userKey,
		Role:    domain.Role(role),
		Content: content,
		Created: created,
	}, nil
}

func turnItem(t domain.ArchivedTurn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":      &types.AttributeValueMemberS{Value: t.PK},
		"SK":      &types.AttributeValueMemberS{Value: t.SK},
		"userKey": &types.AttributeValueMemberS{Value: t.UserKey},
		"role":    &types.AttributeValueMemberS{Value: string(t.Role)},
		"content": &types.AttributeValueMemberS{Value: t.Content},
		"created": &types.AttributeValueMemberS{Value: t.Created},
		"ttl":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", t.TTL)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
