package store

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Fields holds attribute values for a create or update request, keyed by
// attribute name. Values are marshalled with attributevalue.
type Fields map[string]any

// Client is the subset of the DynamoDB API the store depends on.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Descriptor binds an entity type to its table and its position in the
// hierarchy. One Descriptor exists per entity type; instances never carry
// per-record state.
type Descriptor struct {
	// Table is the DynamoDB table name for this entity type.
	Table string

	// Type is the entity type name (e.g., "issue").
	Type string

	// ParentKey is the attribute referencing the immediate parent
	// (e.g., "project_id"). Root entities use "id".
	ParentKey string

	// RootKey is the attribute referencing the top-most ancestor, used for
	// bulk cleanup spanning multiple hierarchy levels. Root entities use "id".
	RootKey string

	// ParentIndex is the GSI over ParentKey. Empty when ParentKey is "id".
	ParentIndex string

	// RootIndex is the GSI over RootKey. Empty when RootKey is "id".
	RootIndex string

	// Required lists attributes that must be present and non-empty on create.
	Required []string

	// Unique lists attributes whose values must be unique within the table.
	Unique []string

	// Nested lists attributes that are patched sub-field by sub-field on
	// update instead of being replaced wholesale. This is the per-entity
	// update schema; anything not listed here scalar-replaces.
	Nested []string

	// Defaults maps attributes to values applied on create when absent.
	Defaults map[string]any

	// Derive normalizes or recomputes derived attributes. It runs on every
	// write, after defaults on create and after the patch merge on update.
	Derive func(item map[string]types.AttributeValue)
}

// HasParent reports whether this entity type references a distinct parent.
func (d Descriptor) HasParent() bool {
	return d.ParentKey != "" && d.ParentKey != "id"
}

// HasRoot reports whether this entity type references a distinct root.
func (d Descriptor) HasRoot() bool {
	return d.RootKey != "" && d.RootKey != "id"
}

// Item represents a retrieved record with its managed fields decoded.
type Item struct {
	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue

	// ID is the record identifier.
	ID string

	// Revision is the optimistic lock revision.
	Revision int64

	// CreatedAt is the ISO 8601 creation timestamp.
	CreatedAt string

	// UpdatedAt is the ISO 8601 last update timestamp.
	UpdatedAt string
}

// StringAttr returns the named string attribute, or "" when absent.
func (it *Item) StringAttr(name string) string {
	return stringAttr(it.Raw, name)
}

// NumberAttr returns the named numeric attribute, or 0 when absent.
func (it *Item) NumberAttr(name string) float64 {
	n, _ := numberAttr(it.Raw, name)
	return n
}

// Decode unmarshals the item into out using attributevalue.
func (it *Item) Decode(out any) error {
	return attributevalue.UnmarshalMap(it.Raw, out)
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq      Op = "="
	OpBetween Op = "BETWEEN"
	OpIn      Op = "IN"
)

// Cond is a single filter condition. Conditions combine with AND.
type Cond struct {
	Name   string
	Op     Op
	Value  any
	Upper  any   // upper bound for OpBetween
	Values []any // members for OpIn
}

// Eq matches records whose attribute equals value.
func Eq(name string, value any) Cond {
	return Cond{Name: name, Op: OpEq, Value: value}
}

// Between matches records whose attribute lies in [lo, hi], both inclusive.
func Between(name string, lo, hi any) Cond {
	return Cond{Name: name, Op: OpBetween, Value: lo, Upper: hi}
}

// In matches records whose attribute equals any of the given values.
func In(name string, values ...any) Cond {
	return Cond{Name: name, Op: OpIn, Values: values}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func numberAttr(item map[string]types.AttributeValue, name string) (float64, bool) {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(v.Value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
