package track

import (
	"context"

	"github.com/jacentio/gantry/store"
)

// Controller exposes the full set of store operations for one entity type,
// with optional lifecycle hooks wired in by the registry. Hooks run in the
// caller's goroutine: preCreate before the write (an error aborts it),
// postCreate after a successful write, postDelete after a successful delete.
type Controller struct {
	store *store.Store
	desc  store.Descriptor

	preCreate  func(ctx context.Context, fields store.Fields) error
	postCreate func(ctx context.Context, item *store.Item) error
	postDelete func(ctx context.Context, item *store.Item)
}

// Descriptor returns a copy of the controller's entity descriptor.
func (c *Controller) Descriptor() store.Descriptor {
	return c.desc
}

// GetByID fetches one record, returning (nil, nil) when it does not exist.
func (c *Controller) GetByID(ctx context.Context, id string) (*store.Item, error) {
	return c.store.GetByID(ctx, c.desc, id)
}

// GetOne returns the first record matching the conditions, or (nil, nil).
func (c *Controller) GetOne(ctx context.Context, conds ...store.Cond) (*store.Item, error) {
	return c.store.GetOne(ctx, c.desc, conds)
}

// GetAll returns every record matching the conditions.
func (c *Controller) GetAll(ctx context.Context, conds ...store.Cond) ([]*store.Item, error) {
	return c.store.GetAll(ctx, c.desc, conds)
}

// GetAllByParent returns every record whose parent reference equals parentID.
func (c *Controller) GetAllByParent(ctx context.Context, parentID string) ([]*store.Item, error) {
	return c.store.GetAllByParent(ctx, c.desc, parentID)
}

// GetAllByRoot returns every record whose root reference equals rootID.
func (c *Controller) GetAllByRoot(ctx context.Context, rootID string) ([]*store.Item, error) {
	return c.store.GetAllByRoot(ctx, c.desc, rootID)
}

// GetByIDs batch-fetches the given ids, skipping any that do not exist.
func (c *Controller) GetByIDs(ctx context.Context, ids []string) ([]*store.Item, error) {
	return c.store.GetByIDs(ctx, c.desc, ids)
}

// CreateOne validates, stamps, and persists a new record.
func (c *Controller) CreateOne(ctx context.Context, fields store.Fields) (*store.Item, error) {
	if c.preCreate != nil {
		if err := c.preCreate(ctx, fields); err != nil {
			return nil, err
		}
	}
	item, err := c.store.CreateOne(ctx, c.desc, fields)
	if err != nil {
		return nil, err
	}
	if c.postCreate != nil {
		if err := c.postCreate(ctx, item); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// CreateMany persists a batch of new records.
func (c *Controller) CreateMany(ctx context.Context, records []store.Fields) ([]*store.Item, error) {
	if c.preCreate != nil {
		for _, fields := range records {
			if err := c.preCreate(ctx, fields); err != nil {
				return nil, err
			}
		}
	}
	items, err := c.store.CreateMany(ctx, c.desc, records)
	if err != nil {
		return nil, err
	}
	if c.postCreate != nil {
		for _, item := range items {
			if err := c.postCreate(ctx, item); err != nil {
				return nil, err
			}
		}
	}
	return items, nil
}

// Update applies a partial patch to an existing record and returns the new
// state. A missing record is reported as store.ErrNotFound.
func (c *Controller) Update(ctx context.Context, id string, patch store.Fields) (*store.Item, error) {
	return c.store.Update(ctx, c.desc, id, patch)
}

// DeleteOne removes one record and returns its prior state. A missing record
// is reported as store.ErrNotFound.
func (c *Controller) DeleteOne(ctx context.Context, id string) (*store.Item, error) {
	item, err := c.store.DeleteOne(ctx, c.desc, id)
	if err != nil {
		return nil, err
	}
	if c.postDelete != nil {
		c.postDelete(ctx, item)
	}
	return item, nil
}

// DeleteByParent removes every record under the given parent and returns the
// number removed. Zero matches is success.
func (c *Controller) DeleteByParent(ctx context.Context, parentID string) (int, error) {
	return c.store.DeleteByParent(ctx, c.desc, parentID)
}

// DeleteByRoot removes every record under the given root and returns the
// number removed.
func (c *Controller) DeleteByRoot(ctx context.Context, rootID string) (int, error) {
	return c.store.DeleteByRoot(ctx, c.desc, rootID)
}
