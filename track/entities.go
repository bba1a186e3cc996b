// Package track implements the two tracking hierarchies of the backend, the
// Project/Issue/SubIssue/Timelog tree for time tracking and the
// Projection/Version/Story/Task tree for effort estimation, as typed
// controllers over the store. It also provides the registry that resolves
// entity types to controllers and the cascade coordinator for children-first
// deletes.
package track

import (
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/gantry/store"
)

// EntityType identifies one of the tracked entity types.
type EntityType string

const (
	TypeUser       EntityType = "user"
	TypeProject    EntityType = "project"
	TypeIssue      EntityType = "issue"
	TypeSubIssue   EntityType = "subissue"
	TypeTimelog    EntityType = "timelog"
	TypeProjection EntityType = "projection"
	TypeVersion    EntityType = "version"
	TypeStory      EntityType = "story"
	TypeTask       EntityType = "task"
)

// Reference attribute names shared across entity types.
const (
	attrID           = "id"
	attrProjectID    = "project_id"
	attrIssueID      = "issue_id"
	attrProjectionID = "projection_id"
	attrVersionID    = "version_id"
	attrStoryID      = "story_id"
	attrTaskID       = "task_id"
)

// Issue and sub-issue status codes.
const (
	IssueStatusProgress = 10
	IssueStatusNew      = 20
	IssueStatusHold     = 30
	IssueStatusReady    = 40
	IssueStatusClosed   = 50
)

// Issue priorities, 1 = Critical .. 4 = Low.
const (
	PriorityCritical = 1
	PriorityHigh     = 2
	PriorityMedium   = 3
	PriorityLow      = 4
)

func projectDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:     c.ProjectTable,
		Type:      string(TypeProject),
		ParentKey: attrID,
		RootKey:   attrID,
		Required:  []string{"code", "name"},
		Unique:    []string{"code"},
		Defaults:  map[string]any{"status": "INACTIVE"},
		Derive:    upperCode,
	}
}

func issueDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:       c.IssueTable,
		Type:        string(TypeIssue),
		ParentKey:   attrProjectID,
		RootKey:     attrProjectID,
		ParentIndex: indexName(attrProjectID),
		RootIndex:   indexName(attrProjectID),
		Required:    []string{attrProjectID, "summary"},
		Defaults:    map[string]any{"status": IssueStatusNew, "priority": PriorityLow},
		Derive:      upperCode,
	}
}

func subIssueDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:       c.SubIssueTable,
		Type:        string(TypeSubIssue),
		ParentKey:   attrIssueID,
		RootKey:     attrProjectID,
		ParentIndex: indexName(attrIssueID),
		RootIndex:   indexName(attrProjectID),
		Required:    []string{attrProjectID, attrIssueID, "summary"},
		Defaults:    map[string]any{"status": IssueStatusNew, "priority": PriorityLow},
	}
}

func timelogDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:       c.TimelogTable,
		Type:        string(TypeTimelog),
		ParentKey:   attrIssueID,
		RootKey:     attrProjectID,
		ParentIndex: indexName(attrIssueID),
		RootIndex:   indexName(attrProjectID),
		Required:    []string{attrProjectID, attrIssueID},
	}
}

func projectionDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:     c.ProjectionTable,
		Type:      string(TypeProjection),
		ParentKey: attrID,
		RootKey:   attrID,
		Required:  []string{"code", "name"},
		Unique:    []string{"code"},
		Nested:    []string{"estimation"},
		Defaults:  map[string]any{"status": "INACTIVE"},
		Derive:    upperCode,
	}
}

func versionDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:       c.VersionTable,
		Type:        string(TypeVersion),
		ParentKey:   attrProjectionID,
		RootKey:     attrProjectionID,
		ParentIndex: indexName(attrProjectionID),
		RootIndex:   indexName(attrProjectionID),
		Required:    []string{attrProjectionID, "version", "name"},
		Nested:      []string{"estimation"},
		Defaults:    map[string]any{"status": "DRAFT"},
	}
}

func storyDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:       c.StoryTable,
		Type:        string(TypeStory),
		ParentKey:   attrVersionID,
		RootKey:     attrProjectionID,
		ParentIndex: indexName(attrVersionID),
		RootIndex:   indexName(attrProjectionID),
		Required:    []string{attrProjectionID, attrVersionID, "summary"},
		Nested:      []string{"estimation"},
		Derive:      upperCode,
	}
}

func taskDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:       c.TaskTable,
		Type:        string(TypeTask),
		ParentKey:   attrStoryID,
		RootKey:     attrVersionID,
		ParentIndex: indexName(attrStoryID),
		RootIndex:   indexName(attrVersionID),
		Required:    []string{attrProjectionID, attrVersionID, attrStoryID, "summary"},
		Nested:      []string{"estimation"},
		Defaults:    map[string]any{"status": "NEW"},
		Derive:      deriveTask,
	}
}

func userDescriptor(c Config) store.Descriptor {
	return store.Descriptor{
		Table:     c.UserTable,
		Type:      string(TypeUser),
		ParentKey: attrID,
		RootKey:   attrID,
		Required:  []string{"email", "hashedPassword", "salt"},
		Unique:    []string{"email"},
	}
}

func indexName(attr string) string {
	return attr + "-index"
}

// upperCode normalizes display codes to upper case on every write.
func upperCode(item map[string]types.AttributeValue) {
	if v, ok := item["code"].(*types.AttributeValueMemberS); ok {
		item["code"] = &types.AttributeValueMemberS{Value: strings.ToUpper(v.Value)}
	}
}

// deriveTask recomputes the task's grade on every write:
// total = value + (value * risk / 100), with missing value/risk read as 0.
func deriveTask(item map[string]types.AttributeValue) {
	upperCode(item)

	value := numberOrZero(item, "value")
	risk := numberOrZero(item, "risk")
	setNumber(item, "total", value+(value*risk)/100)
}

func numberOrZero(item map[string]types.AttributeValue, name string) float64 {
	v, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	n, err := strconv.ParseFloat(v.Value, 64)
	if err != nil {
		return 0
	}
	return n
}

func setNumber(item map[string]types.AttributeValue, name string, n float64) {
	item[name] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(n, 'f', -1, 64)}
}
