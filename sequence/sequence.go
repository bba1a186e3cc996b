// Package sequence mints monotonically increasing numbers per owning record.
//
// One counter record exists per owner id (e.g., per project). Numbers are
// drawn with a single native DynamoDB increment-and-fetch, so concurrent
// callers for the same owner always observe distinct, strictly increasing
// values.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrDuplicateCounter is returned when initializing a counter for an owner
// that already has one.
var ErrDuplicateCounter = errors.New("gantry: counter already exists")

// DefaultTable is the counters table name used by NewGenerator when none is
// given.
const DefaultTable = "gantry_counters"

// Client is the subset of the DynamoDB API the generator depends on.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Generator owns the counters table. It is safe for concurrent use; all
// coordination happens in DynamoDB's single-item atomicity.
type Generator struct {
	client Client
	table  string
}

// NewGenerator creates a Generator over the given counters table.
func NewGenerator(client Client, table string) *Generator {
	if table == "" {
		table = DefaultTable
	}
	return &Generator{client: client, table: table}
}

// Initialize creates a counter for ownerID seeded at startAt. The first
// number issued afterwards is startAt + incrementBy. Fails with
// ErrDuplicateCounter when the owner already has one.
func (g *Generator) Initialize(ctx context.Context, ownerID string, startAt, incrementBy int64) error {
	_, err := g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.table),
		Item: map[string]types.AttributeValue{
			"owner_id":     &types.AttributeValueMemberS{Value: ownerID},
			"start_at":     &types.AttributeValueMemberN{Value: strconv.FormatInt(startAt, 10)},
			"increment_by": &types.AttributeValueMemberN{Value: strconv.FormatInt(incrementBy, 10)},
			"count":        &types.AttributeValueMemberN{Value: strconv.FormatInt(startAt, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(owner_id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: owner %q", ErrDuplicateCounter, ownerID)
		}
		return fmt.Errorf("initialize counter %q: %w", ownerID, err)
	}
	return nil
}

// Next atomically advances the owner's counter and returns the new count.
// A missing counter is created lazily (startAt=0, incrementBy=1) and the
// increment retried, so the first value an owner ever issues is reported by
// the counter itself, not assumed by the caller.
func (g *Generator) Next(ctx context.Context, ownerID string) (int64, error) {
	for attempt := 0; attempt < 3; attempt++ {
		result, err := g.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(g.table),
			Key:                 ownerKey(ownerID),
			UpdateExpression:    aws.String("SET #count = #count + #inc"),
			ConditionExpression: aws.String("attribute_exists(owner_id)"),
			ExpressionAttributeNames: map[string]string{
				"#count": "count",
				"#inc":   "increment_by",
			},
			ReturnValues: types.ReturnValueAllNew,
		})
		if err == nil {
			count, ok := result.Attributes["count"].(*types.AttributeValueMemberN)
			if !ok {
				return 0, fmt.Errorf("counter %q: malformed count attribute", ownerID)
			}
			n, err := strconv.ParseInt(count.Value, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("counter %q: parse count: %w", ownerID, err)
			}
			return n, nil
		}

		var condErr *types.ConditionalCheckFailedException
		if !errors.As(err, &condErr) {
			return 0, fmt.Errorf("advance counter %q: %w", ownerID, err)
		}

		// No counter yet. Create one and go around; a concurrent caller may
		// have created it first, which is fine.
		if initErr := g.Initialize(ctx, ownerID, 0, 1); initErr != nil && !errors.Is(initErr, ErrDuplicateCounter) {
			return 0, initErr
		}
	}
	return 0, fmt.Errorf("advance counter %q: retries exhausted", ownerID)
}

// Current reads the owner's count without advancing it. A missing counter
// reads as its would-be seed, 0.
func (g *Generator) Current(ctx context.Context, ownerID string) (int64, error) {
	result, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.table),
		Key:       ownerKey(ownerID),
	})
	if err != nil {
		return 0, fmt.Errorf("read counter %q: %w", ownerID, err)
	}
	if result.Item == nil {
		return 0, nil
	}
	count, ok := result.Item["count"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("counter %q: malformed count attribute", ownerID)
	}
	return strconv.ParseInt(count.Value, 10, 64)
}

// Remove deletes the owner's counter. Absence is not an error.
func (g *Generator) Remove(ctx context.Context, ownerID string) error {
	_, err := g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.table),
		Key:       ownerKey(ownerID),
	})
	if err != nil {
		return fmt.Errorf("remove counter %q: %w", ownerID, err)
	}
	return nil
}

func ownerKey(ownerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"owner_id": &types.AttributeValueMemberS{Value: ownerID},
	}
}
