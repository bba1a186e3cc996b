package track_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jacentio/gantry/store"
	"github.com/jacentio/gantry/track"
)

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	cascade := track.NewCascade(reg)

	project := createProject(t, reg.Project(), "CAS")
	other := createProject(t, reg.Project(), "OTH")

	issue, err := reg.Issue().CreateOne(ctx, store.Fields{"project_id": project.ID, "summary": "doomed"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	if _, err := reg.Timelog().CreateOne(ctx, store.Fields{
		"project_id": project.ID,
		"issue_id":   issue.ID,
		"hours":      2.5,
	}); err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	survivor, err := reg.Issue().CreateOne(ctx, store.Fields{"project_id": other.ID, "summary": "keeps"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	old, err := cascade.DeleteProject(ctx, project.ID, true)
	if err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if old.StringAttr("code") != "CAS" {
		t.Errorf("expected prior project state returned, got code %q", old.StringAttr("code"))
	}

	issues, err := reg.Issue().GetAllByParent(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetAllByParent failed: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues left under project, got %d", len(issues))
	}
	timelogs, err := reg.Timelog().GetAllByRoot(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetAllByRoot failed: %v", err)
	}
	if len(timelogs) != 0 {
		t.Errorf("expected no timelogs left under project, got %d", len(timelogs))
	}

	// The other project's tree is untouched.
	kept, err := reg.Issue().GetByID(ctx, survivor.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if kept == nil {
		t.Error("expected unrelated issue to survive")
	}
}

func TestDeleteProjectWithoutChildren(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	cascade := track.NewCascade(reg)

	project := createProject(t, reg.Project(), "FLAT")
	issue, err := reg.Issue().CreateOne(ctx, store.Fields{"project_id": project.ID, "summary": "stays"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	if _, err := cascade.DeleteProject(ctx, project.ID, false); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}

	// Children are left in place when the cascade flag is off; the stream
	// repair handler is responsible for them.
	kept, err := reg.Issue().GetByID(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if kept == nil {
		t.Error("expected issue to remain without the cascade flag")
	}
}

func TestDeleteProjectMissing(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	cascade := track.NewCascade(reg)

	_, err := cascade.DeleteProject(ctx, "nope", true)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIssueCascades(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	cascade := track.NewCascade(reg)

	project := createProject(t, reg.Project(), "ISS")
	first, err := reg.Issue().CreateOne(ctx, store.Fields{"project_id": project.ID, "summary": "doomed"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	second, err := reg.Issue().CreateOne(ctx, store.Fields{"project_id": project.ID, "summary": "kept"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	for _, issueID := range []string{first.ID, first.ID, second.ID} {
		if _, err := reg.Timelog().CreateOne(ctx, store.Fields{
			"project_id": project.ID,
			"issue_id":   issueID,
			"hours":      1.0,
		}); err != nil {
			t.Fatalf("CreateOne failed: %v", err)
		}
	}

	if _, err := cascade.DeleteIssue(ctx, first.ID, true); err != nil {
		t.Fatalf("DeleteIssue failed: %v", err)
	}

	gone, err := reg.Timelog().GetAllByParent(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetAllByParent failed: %v", err)
	}
	if len(gone) != 0 {
		t.Errorf("expected no timelogs left under deleted issue, got %d", len(gone))
	}
	kept, err := reg.Timelog().GetAllByParent(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetAllByParent failed: %v", err)
	}
	if len(kept) != 1 {
		t.Errorf("expected the other issue's timelog to survive, got %d", len(kept))
	}
}

func TestDeleteIssueWithoutChildren(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)
	cascade := track.NewCascade(reg)

	project := createProject(t, reg.Project(), "NOC")
	issue, err := reg.Issue().CreateOne(ctx, store.Fields{"project_id": project.ID, "summary": "doomed"})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	timelog, err := reg.Timelog().CreateOne(ctx, store.Fields{
		"project_id": project.ID,
		"issue_id":   issue.ID,
		"hours":      1.5,
	})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}

	if _, err := cascade.DeleteIssue(ctx, issue.ID, false); err != nil {
		t.Fatalf("DeleteIssue failed: %v", err)
	}

	gone, err := reg.Issue().GetByID(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if gone != nil {
		t.Error("expected issue to be deleted")
	}

	// Timelogs are left in place when the cascade flag is off; the stream
	// repair handler is responsible for them.
	kept, err := reg.Timelog().GetByID(ctx, timelog.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if kept == nil {
		t.Error("expected timelog to remain without the cascade flag")
	}
}
