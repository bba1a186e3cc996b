package track_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/gantry/internal/memdb"
	"github.com/jacentio/gantry/store"
	"github.com/jacentio/gantry/track"
)

// newRegistry builds a registry over a fresh in-memory database with every
// entity table registered.
func newRegistry(t *testing.T) (*track.Registry, *memdb.DB) {
	t.Helper()
	cfg := track.DefaultConfig()

	db := memdb.New()
	for _, table := range []string{
		cfg.UserTable,
		cfg.ProjectTable,
		cfg.IssueTable,
		cfg.SubIssueTable,
		cfg.TimelogTable,
		cfg.ProjectionTable,
		cfg.VersionTable,
		cfg.StoryTable,
		cfg.TaskTable,
	} {
		db.CreateTable(table, "id")
	}
	db.CreateTable(cfg.CounterTable, "owner_id")
	db.CreateTable(store.DefaultConfig().UniqueTable, "pk", "sk")

	return track.New(db, store.Config{}, track.Config{}, nil), db
}

func TestRegistryGet(t *testing.T) {
	reg, _ := newRegistry(t)

	for _, entityType := range []track.EntityType{
		track.TypeUser,
		track.TypeProject,
		track.TypeIssue,
		track.TypeSubIssue,
		track.TypeTimelog,
		track.TypeProjection,
		track.TypeVersion,
		track.TypeStory,
		track.TypeTask,
	} {
		t.Run(string(entityType), func(t *testing.T) {
			c, err := reg.Get(entityType)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if c == nil {
				t.Fatal("expected a controller")
			}
			if got := c.Descriptor().Type; got != string(entityType) {
				t.Errorf("expected descriptor type %q, got %q", entityType, got)
			}

			// Controllers are memoized.
			again, err := reg.Get(entityType)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if again != c {
				t.Error("expected the same controller instance on repeat Get")
			}
		})
	}
}

func TestRegistryGetUnknownType(t *testing.T) {
	reg, _ := newRegistry(t)

	_, err := reg.Get(track.EntityType("epic"))
	if !errors.Is(err, track.ErrUnknownEntityType) {
		t.Errorf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestRegistryIsolation(t *testing.T) {
	ctx := context.Background()
	regA, _ := newRegistry(t)
	regB, _ := newRegistry(t)

	if _, err := regA.Project().CreateOne(ctx, store.Fields{"code": "iso", "name": "Isolated"}); err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	items, err := regB.Project().GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected registries over separate stores to share nothing, got %d projects", len(items))
	}
}

func TestProjectLifecycleManagesCounter(t *testing.T) {
	ctx := context.Background()
	reg, db := newRegistry(t)

	project, err := reg.Project().CreateOne(ctx, store.Fields{"code": "cnt", "name": "Counted"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	if db.Len(track.DefaultConfig().CounterTable) != 1 {
		t.Errorf("expected counter created with project, got %d", db.Len(track.DefaultConfig().CounterTable))
	}

	if _, err := reg.Project().DeleteOne(ctx, project.ID); err != nil {
		t.Fatalf("DeleteOne failed: %v", err)
	}
	if db.Len(track.DefaultConfig().CounterTable) != 0 {
		t.Errorf("expected counter removed with project, got %d", db.Len(track.DefaultConfig().CounterTable))
	}
}

func TestProjectCodeUppercasedAndUnique(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	project, err := reg.Project().CreateOne(ctx, store.Fields{"code": "low", "name": "Cased"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	if got := project.StringAttr("code"); got != "LOW" {
		t.Errorf("expected code 'LOW', got %q", got)
	}
	if got := project.StringAttr("status"); got != "INACTIVE" {
		t.Errorf("expected default status 'INACTIVE', got %q", got)
	}

	_, err = reg.Project().CreateOne(ctx, store.Fields{"code": "LOW", "name": "Clash"})
	if !errors.Is(err, store.ErrDuplicateValue) {
		t.Errorf("expected ErrDuplicateValue for reused code, got %v", err)
	}
}
