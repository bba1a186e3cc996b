package sequence_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jacentio/gantry/internal/memdb"
	"github.com/jacentio/gantry/sequence"
)

func newGenerator(t *testing.T) (*sequence.Generator, *memdb.DB) {
	t.Helper()
	db := memdb.New()
	db.CreateTable(sequence.DefaultTable, "owner_id")
	return sequence.NewGenerator(db, ""), db
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	gen, _ := newGenerator(t)

	if err := gen.Initialize(ctx, "proj-1", 0, 1); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	current, err := gen.Current(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if current != 0 {
		t.Errorf("expected current 0, got %d", current)
	}
}

func TestInitializeDuplicate(t *testing.T) {
	ctx := context.Background()
	gen, _ := newGenerator(t)

	if err := gen.Initialize(ctx, "proj-1", 0, 1); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	err := gen.Initialize(ctx, "proj-1", 100, 5)
	if !errors.Is(err, sequence.ErrDuplicateCounter) {
		t.Errorf("expected ErrDuplicateCounter, got %v", err)
	}

	// The original counter is untouched.
	if n, _ := gen.Current(ctx, "proj-1"); n != 0 {
		t.Errorf("expected current 0 after duplicate Initialize, got %d", n)
	}
}

func TestNextSequential(t *testing.T) {
	ctx := context.Background()
	gen, _ := newGenerator(t)

	if err := gen.Initialize(ctx, "proj-1", 0, 1); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	for want := int64(1); want <= 5; want++ {
		got, err := gen.Next(ctx, "proj-1")
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
}

func TestNextRespectsIncrementAndStart(t *testing.T) {
	ctx := context.Background()
	gen, _ := newGenerator(t)

	if err := gen.Initialize(ctx, "proj-1", 100, 10); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	got, err := gen.Next(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 110 {
		t.Errorf("expected 110, got %d", got)
	}
	got, err = gen.Next(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 120 {
		t.Errorf("expected 120, got %d", got)
	}
}

func TestNextUninitializedCounter(t *testing.T) {
	ctx := context.Background()
	gen, _ := newGenerator(t)

	// A counter nobody initialized self-initializes and hands out 1 first.
	got, err := gen.Next(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 1 {
		t.Errorf("expected first value 1, got %d", got)
	}
	got, err = gen.Next(ctx, "proj-1")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 2 {
		t.Errorf("expected second value 2, got %d", got)
	}
}

func TestNextConcurrent(t *testing.T) {
	ctx := context.Background()
	gen, _ := newGenerator(t)

	if err := gen.Initialize(ctx, "proj-1", 0, 1); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	const workers = 50
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []int64
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := gen.Next(ctx, "proj-1")
			if err != nil {
				t.Errorf("Next failed: %v", err)
				return
			}
			mu.Lock()
			results = append(results, n)
			mu.Unlock()
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, workers)
	for _, n := range results {
		if seen[n] {
			t.Errorf("value %d issued twice", n)
		}
		seen[n] = true
		if n < 1 || n > workers {
			t.Errorf("value %d outside expected range [1,%d]", n, workers)
		}
	}
	if len(results) != workers {
		t.Errorf("expected %d results, got %d", workers, len(results))
	}
}

func TestCounterIsolation(t *testing.T) {
	ctx := context.Background()
	gen, _ := newGenerator(t)

	if err := gen.Initialize(ctx, "proj-a", 0, 1); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := gen.Initialize(ctx, "proj-b", 0, 1); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := gen.Next(ctx, "proj-a"); err != nil {
			t.Fatalf("Next failed: %v", err)
		}
	}
	got, err := gen.Next(ctx, "proj-b")
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if got != 1 {
		t.Errorf("expected proj-b to issue 1, got %d", got)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	gen, db := newGenerator(t)

	if err := gen.Initialize(ctx, "proj-1", 0, 1); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := gen.Remove(ctx, "proj-1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if db.Len(sequence.DefaultTable) != 0 {
		t.Errorf("expected empty counter table, got %d items", db.Len(sequence.DefaultTable))
	}

	// Removing a counter that does not exist is not an error.
	if err := gen.Remove(ctx, "proj-1"); err != nil {
		t.Errorf("expected idempotent Remove, got %v", err)
	}
}
