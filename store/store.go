package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/gantry/internal/shard"
)

// Store provides descriptor-driven DynamoDB persistence with hierarchical
// entity support. It is safe for concurrent use.
type Store struct {
	client Client
	config Config
}

// New creates a new Store instance.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{
		client: client,
		config: config,
	}
}

// GetByID looks a record up by identifier. Absence is not an error: a missing
// record returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, d Descriptor, id string) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.Table),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, unavailable("get "+d.Type, err)
	}
	if result.Item == nil {
		return nil, nil
	}
	return newItem(result.Item), nil
}

// GetOne returns the first record matching the conditions, or (nil, nil).
func (s *Store) GetOne(ctx context.Context, d Descriptor, conds []Cond) (*Item, error) {
	items, err := s.GetAll(ctx, d, conds)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

// GetAll returns every record matching the conditions. No matches yields an
// empty slice, never nil-with-error.
func (s *Store) GetAll(ctx context.Context, d Descriptor, conds []Cond) ([]*Item, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(d.Table),
	}

	if len(conds) > 0 {
		expr, names, values, err := buildFilter(conds)
		if err != nil {
			return nil, err
		}
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = names
		input.ExpressionAttributeValues = values
	}

	items := []*Item{}
	paginator := dynamodb.NewScanPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable("scan "+d.Type, err)
		}
		for _, raw := range page.Items {
			items = append(items, newItem(raw))
		}
	}

	return items, nil
}

// GetAllByParent returns every record whose parent key references parentID.
// For root entity types the parent key is the id itself.
func (s *Store) GetAllByParent(ctx context.Context, d Descriptor, parentID string) ([]*Item, error) {
	if !d.HasParent() {
		return s.selfScoped(ctx, d, parentID)
	}
	return s.queryIndex(ctx, d, d.ParentIndex, d.ParentKey, parentID)
}

// GetAllByRoot returns every record whose root key references rootID.
// For root entity types the root key is the id itself.
func (s *Store) GetAllByRoot(ctx context.Context, d Descriptor, rootID string) ([]*Item, error) {
	if !d.HasRoot() {
		return s.selfScoped(ctx, d, rootID)
	}
	return s.queryIndex(ctx, d, d.RootIndex, d.RootKey, rootID)
}

func (s *Store) selfScoped(ctx context.Context, d Descriptor, id string) ([]*Item, error) {
	item, err := s.GetByID(ctx, d, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return []*Item{}, nil
	}
	return []*Item{item}, nil
}

// GetByIDs performs a batched lookup. An empty id set returns immediately
// without touching the store.
func (s *Store) GetByIDs(ctx context.Context, d Descriptor, ids []string) ([]*Item, error) {
	items := []*Item{}
	if len(ids) == 0 {
		return items, nil
	}

	// DynamoDB caps BatchGetItem at 100 keys per request.
	for start := 0; start < len(ids); start += 100 {
		end := start + 100
		if end > len(ids) {
			end = len(ids)
		}

		keys := make([]PK, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, idKey(id))
		}

		request := map[string]types.KeysAndAttributes{
			d.Table: {Keys: toKeyMaps(keys)},
		}
		for len(request) > 0 {
			result, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: request,
			})
			if err != nil {
				return nil, unavailable("batch get "+d.Type, err)
			}
			for _, raw := range result.Responses[d.Table] {
				items = append(items, newItem(raw))
			}
			request = result.UnprocessedKeys
		}
	}

	return items, nil
}

// CreateOne validates required fields, applies defaults and derivation, and
// persists a new record with a generated id and timestamps. Unique fields are
// reserved transactionally via constraint records.
func (s *Store) CreateOne(ctx context.Context, d Descriptor, fields Fields) (*Item, error) {
	item, err := s.prepareItem(d, fields)
	if err != nil {
		return nil, err
	}
	s.stampNew(d, item)

	if len(d.Unique) > 0 {
		if err := s.createWithConstraints(ctx, d, item); err != nil {
			return nil, err
		}
		return newItem(item), nil
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrDuplicateValue
		}
		return nil, unavailable("create "+d.Type, err)
	}
	return newItem(item), nil
}

// CreateMany persists a batch of records. All-or-nothing is not guaranteed:
// the batch write's native best-effort semantics apply. Entity types with
// unique fields fall back to per-record conditional creates.
func (s *Store) CreateMany(ctx context.Context, d Descriptor, fieldSets []Fields) ([]*Item, error) {
	created := []*Item{}
	if len(fieldSets) == 0 {
		return created, nil
	}

	if len(d.Unique) > 0 {
		for _, fields := range fieldSets {
			item, err := s.CreateOne(ctx, d, fields)
			if err != nil {
				return created, err
			}
			created = append(created, item)
		}
		return created, nil
	}

	prepared := make([]map[string]types.AttributeValue, 0, len(fieldSets))
	for _, fields := range fieldSets {
		item, err := s.prepareItem(d, fields)
		if err != nil {
			return nil, err
		}
		s.stampNew(d, item)
		prepared = append(prepared, item)
	}

	for start := 0; start < len(prepared); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(prepared) {
			end = len(prepared)
		}

		writes := make([]types.WriteRequest, 0, end-start)
		for _, item := range prepared[start:end] {
			writes = append(writes, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: item},
			})
		}
		if err := s.batchWrite(ctx, d.Table, writes); err != nil {
			return nil, err
		}
	}

	for _, item := range prepared {
		created = append(created, newItem(item))
	}
	return created, nil
}

// Update merges a partial update into the stored record, re-runs derivation,
// and persists with optimistic locking. A missing id fails with ErrNotFound.
func (s *Store) Update(ctx context.Context, d Descriptor, id string, patch Fields) (*Item, error) {
	current, err := s.GetByID(ctx, d, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, d.Type, id)
	}

	merged, err := applyPatch(d, current.Raw, patch)
	if err != nil {
		return nil, err
	}
	if d.Derive != nil {
		d.Derive(merged)
	}

	merged["updated_at"] = &types.AttributeValueMemberS{Value: nowISO()}
	merged["revision"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current.Revision+1, 10)}

	if changed := changedUniques(d, current.Raw, merged); len(changed) > 0 {
		if err := s.updateWithConstraints(ctx, d, merged, current, changed); err != nil {
			return nil, err
		}
		return newItem(merged), nil
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(d.Table),
		Item:                     merged,
		ConditionExpression:      aws.String("#revision = :expected_revision"),
		ExpressionAttributeNames: map[string]string{"#revision": "revision"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected_revision": &types.AttributeValueMemberN{Value: strconv.FormatInt(current.Revision, 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, ErrConcurrentModification
		}
		return nil, unavailable("update "+d.Type, err)
	}
	return newItem(merged), nil
}

// DeleteOne removes a record and returns its prior state. A missing id fails
// with ErrNotFound; DeleteOne is deliberately not idempotent.
func (s *Store) DeleteOne(ctx context.Context, d Descriptor, id string) (*Item, error) {
	result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(d.Table),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
		ReturnValues:        types.ReturnValueAllOld,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return nil, fmt.Errorf("%w: %s %q", ErrNotFound, d.Type, id)
		}
		return nil, unavailable("delete "+d.Type, err)
	}

	old := newItem(result.Attributes)
	s.releaseConstraints(ctx, d, old.Raw)
	return old, nil
}

// DeleteByParent bulk-deletes every record whose parent key references
// parentID and returns the number removed. Zero matches is success.
func (s *Store) DeleteByParent(ctx context.Context, d Descriptor, parentID string) (int, error) {
	if !d.HasParent() {
		return s.deleteSelfScoped(ctx, d, parentID)
	}
	items, err := s.queryIndex(ctx, d, d.ParentIndex, d.ParentKey, parentID)
	if err != nil {
		return 0, err
	}
	return s.deleteItems(ctx, d, items)
}

// DeleteByRoot bulk-deletes every record whose root key references rootID and
// returns the number removed. Zero matches is success.
func (s *Store) DeleteByRoot(ctx context.Context, d Descriptor, rootID string) (int, error) {
	if !d.HasRoot() {
		return s.deleteSelfScoped(ctx, d, rootID)
	}
	items, err := s.queryIndex(ctx, d, d.RootIndex, d.RootKey, rootID)
	if err != nil {
		return 0, err
	}
	return s.deleteItems(ctx, d, items)
}

// DeleteWhere bulk-deletes every record matching the conditions and returns
// the number removed. Zero matches is success.
func (s *Store) DeleteWhere(ctx context.Context, d Descriptor, conds []Cond) (int, error) {
	items, err := s.GetAll(ctx, d, conds)
	if err != nil {
		return 0, err
	}
	return s.deleteItems(ctx, d, items)
}

// --- internals ---

func (s *Store) deleteSelfScoped(ctx context.Context, d Descriptor, id string) (int, error) {
	_, err := s.DeleteOne(ctx, d, id)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *Store) deleteItems(ctx context.Context, d Descriptor, items []*Item) (int, error) {
	for start := 0; start < len(items); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(items) {
			end = len(items)
		}

		writes := make([]types.WriteRequest, 0, end-start)
		for _, item := range items[start:end] {
			writes = append(writes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: idKey(item.ID)},
			})
		}
		if err := s.batchWrite(ctx, d.Table, writes); err != nil {
			return 0, err
		}
	}

	for _, item := range items {
		s.releaseConstraints(ctx, d, item.Raw)
	}
	return len(items), nil
}

func (s *Store) batchWrite(ctx context.Context, table string, writes []types.WriteRequest) error {
	request := map[string][]types.WriteRequest{table: writes}
	for len(request) > 0 {
		result, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: request,
		})
		if err != nil {
			return unavailable("batch write "+table, err)
		}
		request = result.UnprocessedItems
	}
	return nil
}

func (s *Store) queryIndex(ctx context.Context, d Descriptor, index, attr, value string) ([]*Item, error) {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(d.Table),
		KeyConditionExpression:   aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{"#pk": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: value},
		},
	}
	if index != "" {
		input.IndexName = aws.String(index)
	}

	items := []*Item{}
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable("query "+d.Type, err)
		}
		for _, raw := range page.Items {
			items = append(items, newItem(raw))
		}
	}
	return items, nil
}

// prepareItem validates required fields, applies defaults, marshals the
// fields, and runs entity derivation.
func (s *Store) prepareItem(d Descriptor, fields Fields) (map[string]types.AttributeValue, error) {
	for _, name := range d.Required {
		v, ok := fields[name]
		if !ok || v == nil || v == "" {
			return nil, fmt.Errorf("%w: missing required field %q", ErrValidation, name)
		}
	}

	merged := make(map[string]any, len(fields)+len(d.Defaults))
	for k, v := range fields {
		if v == nil || managedAttrs[k] {
			continue
		}
		merged[k] = v
	}
	for k, v := range d.Defaults {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}

	item, err := attributevalue.MarshalMap(merged)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if d.Derive != nil {
		d.Derive(item)
	}
	return item, nil
}

// stampNew sets the store-managed fields on a freshly prepared item.
func (s *Store) stampNew(d Descriptor, item map[string]types.AttributeValue) {
	now := nowISO()
	item["id"] = &types.AttributeValueMemberS{Value: uuid.NewString()}
	item["entity_type"] = &types.AttributeValueMemberS{Value: d.Type}
	item["revision"] = &types.AttributeValueMemberN{Value: "1"}
	item["created_at"] = &types.AttributeValueMemberS{Value: now}
	item["updated_at"] = &types.AttributeValueMemberS{Value: now}
}

// createWithConstraints writes the record and its unique constraint records
// in one transaction, so concurrent duplicates cannot both win.
func (s *Store) createWithConstraints(ctx context.Context, d Descriptor, item map[string]types.AttributeValue) error {
	writes := []types.TransactWriteItem{}
	for _, field := range d.Unique {
		value := stringAttr(item, field)
		if value == "" {
			continue
		}
		writes = append(writes, s.constraintPut(d, field, value, stringAttr(item, "id")))
	}

	writes = append(writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(d.Table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	return mapTransactionError(err, "create "+d.Type)
}

// updateWithConstraints handles updates where unique fields changed: old
// constraints are released and new ones reserved in the same transaction as
// the record write.
func (s *Store) updateWithConstraints(ctx context.Context, d Descriptor, merged map[string]types.AttributeValue, current *Item, changed []string) error {
	writes := []types.TransactWriteItem{}
	for _, field := range changed {
		if oldValue := stringAttr(current.Raw, field); oldValue != "" {
			writes = append(writes, types.TransactWriteItem{
				Delete: &types.Delete{
					TableName: aws.String(s.config.UniqueTable),
					Key:       constraintKey(d.Table, field, oldValue),
				},
			})
		}
		if newValue := stringAttr(merged, field); newValue != "" {
			writes = append(writes, s.constraintPut(d, field, newValue, current.ID))
		}
	}

	writes = append(writes, types.TransactWriteItem{
		Put: &types.Put{
			TableName:                aws.String(d.Table),
			Item:                     merged,
			ConditionExpression:      aws.String("#revision = :expected_revision"),
			ExpressionAttributeNames: map[string]string{"#revision": "revision"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expected_revision": &types.AttributeValueMemberN{Value: strconv.FormatInt(current.Revision, 10)},
			},
		},
	})

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: writes,
	})
	return mapTransactionError(err, "update "+d.Type)
}

func (s *Store) constraintPut(d Descriptor, field, value, entityID string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":          &types.AttributeValueMemberS{Value: shard.ConstraintPK(d.Table, field, value)},
				"sk":          &types.AttributeValueMemberS{Value: "CONSTRAINT"},
				"entity_type": &types.AttributeValueMemberS{Value: d.Type},
				"field_name":  &types.AttributeValueMemberS{Value: field},
				"field_value": &types.AttributeValueMemberS{Value: value},
				"entity_id":   &types.AttributeValueMemberS{Value: entityID},
			},
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		},
	}
}

// releaseConstraints best-effort deletes the constraint records for a removed
// item. A failure here leaves a stale reservation, swept by the repair
// handler alongside other orphans.
func (s *Store) releaseConstraints(ctx context.Context, d Descriptor, raw map[string]types.AttributeValue) {
	for _, field := range d.Unique {
		value := stringAttr(raw, field)
		if value == "" {
			continue
		}
		_, _ = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(s.config.UniqueTable),
			Key:       constraintKey(d.Table, field, value),
		})
	}
}

// changedUniques returns the unique fields whose value differs between the
// stored item and the merged update.
func changedUniques(d Descriptor, current, merged map[string]types.AttributeValue) []string {
	var changed []string
	for _, field := range d.Unique {
		if stringAttr(current, field) != stringAttr(merged, field) {
			changed = append(changed, field)
		}
	}
	return changed
}

func constraintKey(table, field, value string) PK {
	return PK{
		"pk": &types.AttributeValueMemberS{Value: shard.ConstraintPK(table, field, value)},
		"sk": &types.AttributeValueMemberS{Value: "CONSTRAINT"},
	}
}

// buildFilter renders conditions into a DynamoDB filter expression with
// placeholder names and values.
func buildFilter(conds []Cond) (string, map[string]string, map[string]types.AttributeValue, error) {
	expr := ""
	names := map[string]string{}
	values := map[string]types.AttributeValue{}

	for i, cond := range conds {
		nameKey := fmt.Sprintf("#f%d", i)
		names[nameKey] = cond.Name

		clause := ""
		switch cond.Op {
		case OpEq:
			valueKey := fmt.Sprintf(":v%d", i)
			av, err := attributevalue.Marshal(cond.Value)
			if err != nil {
				return "", nil, nil, fmt.Errorf("%w: filter %q: %v", ErrValidation, cond.Name, err)
			}
			values[valueKey] = av
			clause = fmt.Sprintf("%s = %s", nameKey, valueKey)
		case OpBetween:
			loKey := fmt.Sprintf(":v%dlo", i)
			hiKey := fmt.Sprintf(":v%dhi", i)
			lo, err := attributevalue.Marshal(cond.Value)
			if err != nil {
				return "", nil, nil, fmt.Errorf("%w: filter %q: %v", ErrValidation, cond.Name, err)
			}
			hi, err := attributevalue.Marshal(cond.Upper)
			if err != nil {
				return "", nil, nil, fmt.Errorf("%w: filter %q: %v", ErrValidation, cond.Name, err)
			}
			values[loKey] = lo
			values[hiKey] = hi
			clause = fmt.Sprintf("%s BETWEEN %s AND %s", nameKey, loKey, hiKey)
		case OpIn:
			if len(cond.Values) == 0 {
				return "", nil, nil, fmt.Errorf("%w: filter %q: empty IN set", ErrValidation, cond.Name)
			}
			refs := make([]string, 0, len(cond.Values))
			for j, member := range cond.Values {
				valueKey := fmt.Sprintf(":v%dx%d", i, j)
				av, err := attributevalue.Marshal(member)
				if err != nil {
					return "", nil, nil, fmt.Errorf("%w: filter %q: %v", ErrValidation, cond.Name, err)
				}
				values[valueKey] = av
				refs = append(refs, valueKey)
			}
			clause = fmt.Sprintf("%s IN (%s)", nameKey, strings.Join(refs, ", "))
		default:
			return "", nil, nil, fmt.Errorf("%w: filter %q: unknown operator %q", ErrValidation, cond.Name, cond.Op)
		}

		if expr != "" {
			expr += " AND "
		}
		expr += clause
	}

	return expr, names, values, nil
}

// mapTransactionError maps transaction cancellations to domain errors.
// Any conditional check failure in a constraint transaction means a
// uniqueness conflict or a concurrent write won.
func mapTransactionError(err error, op string) error {
	if err == nil {
		return nil
	}
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return ErrDuplicateValue
			}
		}
	}
	return unavailable(op, err)
}

// newItem converts a raw DynamoDB item to an Item struct.
func newItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}

	item.ID = stringAttr(raw, "id")
	item.CreatedAt = stringAttr(raw, "created_at")
	item.UpdatedAt = stringAttr(raw, "updated_at")
	if v, ok := raw["revision"].(*types.AttributeValueMemberN); ok {
		item.Revision, _ = strconv.ParseInt(v.Value, 10, 64)
	}

	return item
}

func idKey(id string) PK {
	return PK{"id": &types.AttributeValueMemberS{Value: id}}
}

func toKeyMaps(keys []PK) []map[string]types.AttributeValue {
	out := make([]map[string]types.AttributeValue, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
