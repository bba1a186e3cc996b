package shard

import (
	"strings"
	"testing"
)

func TestConstraintPK_Deterministic(t *testing.T) {
	pk1 := ConstraintPK("projects", "code", "TST01")
	pk2 := ConstraintPK("projects", "code", "TST01")

	if pk1 != pk2 {
		t.Errorf("expected deterministic PK, got %q and %q", pk1, pk2)
	}
}

func TestConstraintPK_Length(t *testing.T) {
	pk := ConstraintPK("projects", "code", "TST01")

	// 128-bit hash as hex = 32 characters
	if len(pk) != 32 {
		t.Errorf("expected 32-char hex PK, got %d chars: %q", len(pk), pk)
	}
	if strings.ToLower(pk) != pk {
		t.Errorf("expected lowercase hex, got %q", pk)
	}
}

func TestConstraintPK_Distinct(t *testing.T) {
	tests := []struct {
		name            string
		tableA, fieldA, valueA string
		tableB, fieldB, valueB string
	}{
		{"different values", "projects", "code", "TST01", "projects", "code", "TST02"},
		{"different fields", "projects", "code", "TST01", "projects", "name", "TST01"},
		{"different tables", "projects", "code", "TST01", "projections", "code", "TST01"},
	}

	for _, tt := range tests {
		pkA := ConstraintPK(tt.tableA, tt.fieldA, tt.valueA)
		pkB := ConstraintPK(tt.tableB, tt.fieldB, tt.valueB)
		if pkA == pkB {
			t.Errorf("%s: expected distinct PKs, both %q", tt.name, pkA)
		}
	}
}
