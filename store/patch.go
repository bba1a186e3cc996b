package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// managedAttrs are maintained by the store and never settable through a patch.
var managedAttrs = map[string]bool{
	"id":          true,
	"entity_type": true,
	"revision":    true,
	"created_at":  true,
	"updated_at":  true,
}

// applyPatch merges a partial update into a copy of the current item.
//
// Attributes listed in the descriptor's Nested schema merge sub-field by
// sub-field: only the sub-fields present in the patch are touched, siblings
// keep their stored values. Every other attribute scalar-replaces. Nil patch
// values are skipped, mirroring "undefined means untouched" semantics.
func applyPatch(d Descriptor, current map[string]types.AttributeValue, patch Fields) (map[string]types.AttributeValue, error) {
	merged := make(map[string]types.AttributeValue, len(current))
	for k, v := range current {
		merged[k] = v
	}

	nested := make(map[string]bool, len(d.Nested))
	for _, name := range d.Nested {
		nested[name] = true
	}

	for name, value := range patch {
		if managedAttrs[name] || value == nil {
			continue
		}

		av, err := attributevalue.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrValidation, name, err)
		}

		if nested[name] {
			merged[name] = mergeNested(merged[name], av)
			continue
		}
		merged[name] = av
	}

	return merged, nil
}

// mergeNested merges the sub-fields of an incoming map attribute into the
// current one. Non-map values on either side fall back to replacement.
func mergeNested(current, incoming types.AttributeValue) types.AttributeValue {
	in, ok := incoming.(*types.AttributeValueMemberM)
	if !ok {
		return incoming
	}
	cur, ok := current.(*types.AttributeValueMemberM)
	if !ok {
		return incoming
	}

	out := make(map[string]types.AttributeValue, len(cur.Value))
	for k, v := range cur.Value {
		out[k] = v
	}
	for k, v := range in.Value {
		if _, isNull := v.(*types.AttributeValueMemberNULL); isNull {
			continue
		}
		out[k] = v
	}
	return &types.AttributeValueMemberM{Value: out}
}
