package track

import (
	"context"
	"fmt"
	"time"

	"github.com/jacentio/gantry/store"
)

// TimelogController extends the base controller with date-range queries.
// Timelog dates are stored as epoch milliseconds so range conditions compare
// numerically.
type TimelogController struct {
	*Controller
}

// TimelogQuery selects timelogs by scope and date range. StartDate and
// EndDate use the "2006-01-02" layout; when both are empty the range defaults
// to the current ISO week, Monday through Sunday.
type TimelogQuery struct {
	ProjectID string
	IssueID   string
	StartDate string
	EndDate   string
}

// GetFiltered returns timelogs matching the query. The date range is always
// applied, defaulting per field to the current ISO week's bounds.
func (c *TimelogController) GetFiltered(ctx context.Context, q TimelogQuery) ([]*store.Item, error) {
	start, err := parseStartDate(q.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseEndDate(q.EndDate)
	if err != nil {
		return nil, err
	}

	conds := []store.Cond{store.Between("dateLog", start.UnixMilli(), end.UnixMilli())}
	if q.ProjectID != "" {
		conds = append(conds, store.Eq(attrProjectID, q.ProjectID))
	}
	if q.IssueID != "" {
		conds = append(conds, store.Eq(attrIssueID, q.IssueID))
	}
	return c.GetAll(ctx, conds...)
}

// normalizeDateLog coerces the dateLog field to epoch milliseconds, filling
// in the current time when absent.
func (c *TimelogController) normalizeDateLog(ctx context.Context, fields store.Fields) error {
	switch v := fields["dateLog"].(type) {
	case nil:
		fields["dateLog"] = time.Now().UTC().UnixMilli()
	case time.Time:
		fields["dateLog"] = v.UnixMilli()
	case int64:
	case int:
		fields["dateLog"] = int64(v)
	case float64:
		fields["dateLog"] = int64(v)
	default:
		return fmt.Errorf("%w: dateLog must be a timestamp", store.ErrValidation)
	}
	return nil
}

func parseStartDate(s string) (time.Time, error) {
	if s == "" {
		return startOfDay(startOfISOWeek(time.Now().UTC())), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid start date %q", store.ErrValidation, s)
	}
	return startOfDay(t), nil
}

func parseEndDate(s string) (time.Time, error) {
	if s == "" {
		return endOfDay(endOfISOWeek(time.Now().UTC())), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid end date %q", store.ErrValidation, s)
	}
	return endOfDay(t), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// endOfDay is the last representable millisecond of t's day.
func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// startOfISOWeek is the Monday of t's week.
func startOfISOWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return t.AddDate(0, 0, 1-wd)
}

// endOfISOWeek is the Sunday of t's week.
func endOfISOWeek(t time.Time) time.Time {
	return startOfISOWeek(t).AddDate(0, 0, 6)
}
