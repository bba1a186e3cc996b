package track

import (
	"context"

	"github.com/jacentio/gantry/store"
)

// Timesheet bundles a set of timelogs with the distinct issues and projects
// they reference, fetched in two batch lookups.
type Timesheet struct {
	Projects []*store.Item
	Issues   []*store.Item
	Timelogs []*store.Item
}

// BuildTimesheet fetches the timelogs matching the query plus every issue
// and project they reference. References to records that no longer exist are
// simply absent from the result.
func BuildTimesheet(ctx context.Context, reg *Registry, q TimelogQuery) (*Timesheet, error) {
	timelogs, err := reg.Timelog().GetFiltered(ctx, q)
	if err != nil {
		return nil, err
	}
	issues, err := reg.Issue().GetByIDs(ctx, UniqueIDs(timelogs, attrIssueID))
	if err != nil {
		return nil, err
	}
	projects, err := reg.Project().GetByIDs(ctx, UniqueIDs(timelogs, attrProjectID))
	if err != nil {
		return nil, err
	}
	return &Timesheet{Projects: projects, Issues: issues, Timelogs: timelogs}, nil
}

// UniqueIDs collects the distinct non-empty values of a string attribute
// across the items, in first-seen order.
func UniqueIDs(items []*store.Item, name string) []string {
	seen := make(map[string]struct{}, len(items))
	var ids []string
	for _, item := range items {
		id := item.StringAttr(name)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
