package track_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jacentio/gantry/store"
	"github.com/jacentio/gantry/track"
)

func createTimelog(t *testing.T, reg *track.Registry, projectID, issueID string, day time.Time) *store.Item {
	t.Helper()
	item, err := reg.Timelog().CreateOne(context.Background(), store.Fields{
		"project_id": projectID,
		"issue_id":   issueID,
		"dateLog":    day,
		"hours":      1.0,
	})
	if err != nil {
		t.Fatalf("create timelog failed: %v", err)
	}
	return item
}

func TestTimelogDateDefaultsToNow(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	before := time.Now().UTC().Add(-time.Second).UnixMilli()
	item, err := reg.Timelog().CreateOne(ctx, store.Fields{
		"project_id": "p-1",
		"issue_id":   "i-1",
	})
	if err != nil {
		t.Fatalf("CreateOne failed: %v", err)
	}
	after := time.Now().UTC().Add(time.Second).UnixMilli()

	logged := int64(item.NumberAttr("dateLog"))
	if logged < before || logged > after {
		t.Errorf("expected dateLog near now, got %d", logged)
	}
}

func TestTimelogRejectsBadDate(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	_, err := reg.Timelog().CreateOne(ctx, store.Fields{
		"project_id": "p-1",
		"issue_id":   "i-1",
		"dateLog":    "yesterday",
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestGetFilteredByDateRange(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	base := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	inRange := createTimelog(t, reg, "p-1", "i-1", base)
	createTimelog(t, reg, "p-1", "i-1", base.AddDate(0, 0, -30))
	createTimelog(t, reg, "p-1", "i-1", base.AddDate(0, 0, 30))

	items, err := reg.Timelog().GetFiltered(ctx, track.TimelogQuery{
		StartDate: "2026-03-09",
		EndDate:   "2026-03-11",
	})
	if err != nil {
		t.Fatalf("GetFiltered failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 timelog in range, got %d", len(items))
	}
	if items[0].ID != inRange.ID {
		t.Errorf("expected timelog %q, got %q", inRange.ID, items[0].ID)
	}
}

func TestGetFilteredRangeIsInclusive(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	// First and last millisecond of the queried day.
	dayStart := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Millisecond)
	createTimelog(t, reg, "p-1", "i-1", dayStart)
	createTimelog(t, reg, "p-1", "i-1", dayEnd)

	items, err := reg.Timelog().GetFiltered(ctx, track.TimelogQuery{
		StartDate: "2026-03-10",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("GetFiltered failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected both edge timelogs, got %d", len(items))
	}
}

func TestGetFilteredByScope(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	day := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	createTimelog(t, reg, "p-1", "i-1", day)
	createTimelog(t, reg, "p-1", "i-2", day)
	createTimelog(t, reg, "p-2", "i-3", day)

	byProject, err := reg.Timelog().GetFiltered(ctx, track.TimelogQuery{
		ProjectID: "p-1",
		StartDate: "2026-03-10",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("GetFiltered failed: %v", err)
	}
	if len(byProject) != 2 {
		t.Errorf("expected 2 timelogs for project, got %d", len(byProject))
	}

	byIssue, err := reg.Timelog().GetFiltered(ctx, track.TimelogQuery{
		IssueID:   "i-2",
		StartDate: "2026-03-10",
		EndDate:   "2026-03-10",
	})
	if err != nil {
		t.Fatalf("GetFiltered failed: %v", err)
	}
	if len(byIssue) != 1 {
		t.Errorf("expected 1 timelog for issue, got %d", len(byIssue))
	}
}

func TestGetFilteredDefaultsToCurrentWeek(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	now := time.Now().UTC()
	inWeek := createTimelog(t, reg, "p-1", "i-1", now)
	createTimelog(t, reg, "p-1", "i-1", now.AddDate(0, 0, -14))
	createTimelog(t, reg, "p-1", "i-1", now.AddDate(0, 0, 14))

	items, err := reg.Timelog().GetFiltered(ctx, track.TimelogQuery{})
	if err != nil {
		t.Fatalf("GetFiltered failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the current week's timelog, got %d", len(items))
	}
	if items[0].ID != inWeek.ID {
		t.Errorf("expected timelog %q, got %q", inWeek.ID, items[0].ID)
	}
}

func TestGetFilteredMalformedDate(t *testing.T) {
	ctx := context.Background()
	reg, _ := newRegistry(t)

	_, err := reg.Timelog().GetFiltered(ctx, track.TimelogQuery{StartDate: "03/10/2026"})
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("expected ErrValidation for malformed start date, got %v", err)
	}
	_, err = reg.Timelog().GetFiltered(ctx, track.TimelogQuery{EndDate: "next friday"})
	if !errors.Is(err, store.ErrValidation) {
		t.Errorf("expected ErrValidation for malformed end date, got %v", err)
	}
}
