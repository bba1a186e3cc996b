package track

import (
	"context"
	"fmt"

	"github.com/jacentio/gantry/store"
)

// Cascade coordinates children-first deletes across the time-tracking
// hierarchy. Each stage commits independently; a failure part way through
// leaves the parent intact so the delete can be retried, and any orphans
// left behind are swept by the stream repair handler.
type Cascade struct {
	reg *Registry
}

// NewCascade returns a cascade coordinator over the registry's controllers.
func NewCascade(reg *Registry) *Cascade {
	return &Cascade{reg: reg}
}

// DeleteProject removes a project. With deleteChildren set, every timelog
// and issue under the project is removed first; the project itself is only
// deleted once its children are gone.
func (c *Cascade) DeleteProject(ctx context.Context, id string, deleteChildren bool) (*store.Item, error) {
	if deleteChildren {
		if _, err := c.reg.Timelog().DeleteByRoot(ctx, id); err != nil {
			return nil, fmt.Errorf("delete project timelogs: %w", err)
		}
		if _, err := c.reg.Issue().DeleteByParent(ctx, id); err != nil {
			return nil, fmt.Errorf("delete project issues: %w", err)
		}
	}
	return c.reg.Project().DeleteOne(ctx, id)
}

// DeleteIssue removes an issue. With deleteChildren set, every timelog
// logged against the issue is removed first.
func (c *Cascade) DeleteIssue(ctx context.Context, id string, deleteChildren bool) (*store.Item, error) {
	if deleteChildren {
		if _, err := c.reg.Timelog().DeleteByParent(ctx, id); err != nil {
			return nil, fmt.Errorf("delete issue timelogs: %w", err)
		}
	}
	return c.reg.Issue().DeleteOne(ctx, id)
}
