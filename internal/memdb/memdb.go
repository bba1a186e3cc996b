// Package memdb implements an in-memory stand-in for the DynamoDB API subset
// gantry uses, so package tests can exercise conditional writes, atomic
// counter increments, and cascade behavior without AWS.
//
// Supported expressions are exactly the shapes gantry emits: conjunctions of
// attribute_exists / attribute_not_exists / equality in conditions, equality,
// BETWEEN, and IN in filters, and SET assignments with optional attribute
// addition in updates. Every call holds one lock, mirroring DynamoDB's
// single-item atomicity for the access patterns under test.
package memdb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DB is an in-memory table collection.
type DB struct {
	mu     sync.Mutex
	tables map[string]*table
	forced error
}

type table struct {
	keyAttrs []string
	items    map[string]map[string]types.AttributeValue
}

// New creates an empty DB.
func New() *DB {
	return &DB{tables: map[string]*table{}}
}

// CreateTable registers a table with its key attributes.
func (db *DB) CreateTable(name string, keyAttrs ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables[name] = &table{
		keyAttrs: keyAttrs,
		items:    map[string]map[string]types.AttributeValue{},
	}
}

// SetError makes every subsequent call fail with err until cleared with nil.
func (db *DB) SetError(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.forced = err
}

// Len returns the number of items in a table.
func (db *DB) Len(name string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	if tbl, ok := db.tables[name]; ok {
		return len(tbl.items)
	}
	return 0
}

func (db *DB) table(name string) (*table, error) {
	tbl, ok := db.tables[name]
	if !ok {
		return nil, fmt.Errorf("memdb: table %q does not exist", name)
	}
	return tbl, nil
}

func (t *table) keyOf(item map[string]types.AttributeValue) (string, error) {
	parts := make([]string, 0, len(t.keyAttrs))
	for _, attr := range t.keyAttrs {
		v, ok := item[attr]
		if !ok {
			return "", fmt.Errorf("memdb: missing key attribute %q", attr)
		}
		parts = append(parts, scalarString(v))
	}
	return strings.Join(parts, "\x00"), nil
}

// --- API surface ---

func (db *DB) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	tbl, err := db.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	key, err := tbl.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := tbl.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

func (db *DB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	if err := db.applyPut(aws.ToString(params.TableName), params.Item,
		aws.ToString(params.ConditionExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (db *DB) UpdateItem(_ context.Context, params *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	tbl, err := db.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	key, err := tbl.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item := tbl.items[key]

	if cond := aws.ToString(params.ConditionExpression); cond != "" {
		ok, err := evalCondition(cond, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}

	if item == nil {
		item = copyItem(params.Key)
	} else {
		item = copyItem(item)
	}
	if err := applyUpdate(aws.ToString(params.UpdateExpression), params.ExpressionAttributeNames, params.ExpressionAttributeValues, item); err != nil {
		return nil, err
	}
	tbl.items[key] = item

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew || params.ReturnValues == types.ReturnValueUpdatedNew {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

func (db *DB) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	tbl, err := db.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}
	key, err := tbl.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item := tbl.items[key]

	if cond := aws.ToString(params.ConditionExpression); cond != "" {
		ok, err := evalCondition(cond, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, conditionFailed()
		}
	}

	delete(tbl.items, key)

	out := &dynamodb.DeleteItemOutput{}
	if params.ReturnValues == types.ReturnValueAllOld && item != nil {
		out.Attributes = copyItem(item)
	}
	return out, nil
}

func (db *DB) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	tbl, err := db.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}

	// Indexes are emulated by filtering the base table with the key condition.
	var matches []map[string]types.AttributeValue
	for _, item := range tbl.items {
		ok, err := evalCondition(aws.ToString(params.KeyConditionExpression),
			params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if filter := aws.ToString(params.FilterExpression); filter != "" {
			ok, err := evalCondition(filter, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matches = append(matches, copyItem(item))
	}

	return &dynamodb.QueryOutput{Items: matches, Count: int32(len(matches))}, nil
}

func (db *DB) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	tbl, err := db.table(aws.ToString(params.TableName))
	if err != nil {
		return nil, err
	}

	var matches []map[string]types.AttributeValue
	for _, item := range tbl.items {
		if filter := aws.ToString(params.FilterExpression); filter != "" {
			ok, err := evalCondition(filter, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matches = append(matches, copyItem(item))
	}

	return &dynamodb.ScanOutput{Items: matches, Count: int32(len(matches))}, nil
}

func (db *DB) BatchGetItem(_ context.Context, params *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	out := &dynamodb.BatchGetItemOutput{
		Responses: map[string][]map[string]types.AttributeValue{},
	}
	for name, request := range params.RequestItems {
		tbl, err := db.table(name)
		if err != nil {
			return nil, err
		}
		for _, keyAttrs := range request.Keys {
			key, err := tbl.keyOf(keyAttrs)
			if err != nil {
				return nil, err
			}
			if item, ok := tbl.items[key]; ok {
				out.Responses[name] = append(out.Responses[name], copyItem(item))
			}
		}
	}
	return out, nil
}

func (db *DB) BatchWriteItem(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	for name, writes := range params.RequestItems {
		tbl, err := db.table(name)
		if err != nil {
			return nil, err
		}
		for _, w := range writes {
			switch {
			case w.PutRequest != nil:
				key, err := tbl.keyOf(w.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				tbl.items[key] = copyItem(w.PutRequest.Item)
			case w.DeleteRequest != nil:
				key, err := tbl.keyOf(w.DeleteRequest.Key)
				if err != nil {
					return nil, err
				}
				delete(tbl.items, key)
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (db *DB) TransactWriteItems(_ context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.forced != nil {
		return nil, db.forced
	}

	// Phase one: evaluate every condition against the current state.
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, w := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}

		var (
			tableName string
			keyAttrs  map[string]types.AttributeValue
			cond      string
			names     map[string]string
			values    map[string]types.AttributeValue
		)
		switch {
		case w.Put != nil:
			tableName = aws.ToString(w.Put.TableName)
			keyAttrs = w.Put.Item
			cond = aws.ToString(w.Put.ConditionExpression)
			names = w.Put.ExpressionAttributeNames
			values = w.Put.ExpressionAttributeValues
		case w.Delete != nil:
			tableName = aws.ToString(w.Delete.TableName)
			keyAttrs = w.Delete.Key
			cond = aws.ToString(w.Delete.ConditionExpression)
			names = w.Delete.ExpressionAttributeNames
			values = w.Delete.ExpressionAttributeValues
		case w.ConditionCheck != nil:
			tableName = aws.ToString(w.ConditionCheck.TableName)
			keyAttrs = w.ConditionCheck.Key
			cond = aws.ToString(w.ConditionCheck.ConditionExpression)
			names = w.ConditionCheck.ExpressionAttributeNames
			values = w.ConditionCheck.ExpressionAttributeValues
		default:
			continue
		}
		if cond == "" {
			continue
		}

		tbl, err := db.table(tableName)
		if err != nil {
			return nil, err
		}
		key, err := tbl.keyOf(keyAttrs)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(cond, names, values, tbl.items[key])
		if err != nil {
			return nil, err
		}
		if !ok {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("transaction canceled"),
			CancellationReasons: reasons,
		}
	}

	// Phase two: apply.
	for _, w := range params.TransactItems {
		switch {
		case w.Put != nil:
			tbl, _ := db.table(aws.ToString(w.Put.TableName))
			key, err := tbl.keyOf(w.Put.Item)
			if err != nil {
				return nil, err
			}
			tbl.items[key] = copyItem(w.Put.Item)
		case w.Delete != nil:
			tbl, _ := db.table(aws.ToString(w.Delete.TableName))
			key, err := tbl.keyOf(w.Delete.Key)
			if err != nil {
				return nil, err
			}
			delete(tbl.items, key)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (db *DB) applyPut(tableName string, item map[string]types.AttributeValue, cond string, names map[string]string, values map[string]types.AttributeValue) error {
	tbl, err := db.table(tableName)
	if err != nil {
		return err
	}
	key, err := tbl.keyOf(item)
	if err != nil {
		return err
	}

	if cond != "" {
		ok, err := evalCondition(cond, names, values, tbl.items[key])
		if err != nil {
			return err
		}
		if !ok {
			return conditionFailed()
		}
	}

	tbl.items[key] = copyItem(item)
	return nil
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{
		Message: aws.String("the conditional request failed"),
	}
}
