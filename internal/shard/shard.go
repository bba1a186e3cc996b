// Package shard provides hash-distributed partition keys for constraint records.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ConstraintPK computes a hash-distributed partition key for a unique constraint.
// Each constraint lands on its own partition, eliminating hot partition risk when
// many records contend for the same constraints table.
func ConstraintPK(table, field, value string) string {
	data := fmt.Sprintf("%s#%s#%s", table, field, value)
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:16]) // 128-bit hash as hex
}
