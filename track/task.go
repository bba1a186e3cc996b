package track

import (
	"context"

	"github.com/jacentio/gantry/store"
)

// TaskController extends the base controller with lookups over task
// references.
type TaskController struct {
	*Controller
}

// GetChildren returns every task that references the given task as its
// parent.
func (c *TaskController) GetChildren(ctx context.Context, taskID string) ([]*store.Item, error) {
	return c.GetAll(ctx, store.Eq(attrTaskID, taskID))
}

// DeleteByProjection removes every task under the given projection,
// regardless of version or story, and returns the number removed.
func (c *TaskController) DeleteByProjection(ctx context.Context, projectionID string) (int, error) {
	return c.store.DeleteWhere(ctx, c.desc, []store.Cond{store.Eq(attrProjectionID, projectionID)})
}
