package track

import (
	"context"
	"fmt"

	"github.com/jacentio/gantry/store"
)

// newIssue builds the issue controller. Its preCreate hook mints the issue
// code from the owning project's code and the next value of the project's
// counter, e.g. "PROJ-17". Issues created for a missing project get no code;
// the reference itself is not validated here.
func (r *Registry) newIssue() *Controller {
	projects := projectDescriptor(r.config)
	return &Controller{
		store: r.store,
		desc:  issueDescriptor(r.config),
		preCreate: func(ctx context.Context, fields store.Fields) error {
			projectID, _ := fields[attrProjectID].(string)
			if projectID == "" {
				return nil
			}
			project, err := r.store.GetByID(ctx, projects, projectID)
			if err != nil {
				return err
			}
			if project == nil {
				return nil
			}
			n, err := r.seq.Next(ctx, projectID)
			if err != nil {
				return err
			}
			fields["code"] = fmt.Sprintf("%s-%d", project.StringAttr("code"), n)
			fields["codeId"] = n
			if url := project.StringAttr("external_url"); url != "" {
				if _, ok := fields["external_url"]; !ok {
					fields["external_url"] = url
				}
			}
			return nil
		},
	}
}
