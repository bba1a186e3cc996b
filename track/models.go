package track

import "time"

// Typed views of the stored records, for callers that prefer structs over
// raw attribute maps. Decode an item into one with store.Item.Decode.

// Estimation is the shared effort block carried by the estimation hierarchy.
type Estimation struct {
	Active float64 `dynamodbav:"active"`
}

type Project struct {
	ID          string `dynamodbav:"id"`
	Code        string `dynamodbav:"code"`
	Name        string `dynamodbav:"name"`
	Description string `dynamodbav:"description"`
	Status      string `dynamodbav:"status"`
	ExternalURL string `dynamodbav:"external_url"`
}

type Issue struct {
	ID          string `dynamodbav:"id"`
	ProjectID   string `dynamodbav:"project_id"`
	Code        string `dynamodbav:"code"`
	CodeID      int64  `dynamodbav:"codeId"`
	Summary     string `dynamodbav:"summary"`
	Description string `dynamodbav:"description"`
	Status      int    `dynamodbav:"status"`
	Priority    int    `dynamodbav:"priority"`
	ExternalURL string `dynamodbav:"external_url"`
}

type SubIssue struct {
	ID        string `dynamodbav:"id"`
	ProjectID string `dynamodbav:"project_id"`
	IssueID   string `dynamodbav:"issue_id"`
	Summary   string `dynamodbav:"summary"`
	Status    int    `dynamodbav:"status"`
	Priority  int    `dynamodbav:"priority"`
}

type Timelog struct {
	ID        string  `dynamodbav:"id"`
	ProjectID string  `dynamodbav:"project_id"`
	IssueID   string  `dynamodbav:"issue_id"`
	DateLog   int64   `dynamodbav:"dateLog"`
	Hours     float64 `dynamodbav:"hours"`
	Comment   string  `dynamodbav:"comment"`
}

// Time returns the log date as a UTC time.
func (t Timelog) Time() time.Time {
	return time.UnixMilli(t.DateLog).UTC()
}

type Projection struct {
	ID          string     `dynamodbav:"id"`
	Code        string     `dynamodbav:"code"`
	Name        string     `dynamodbav:"name"`
	Description string     `dynamodbav:"description"`
	Status      string     `dynamodbav:"status"`
	Estimation  Estimation `dynamodbav:"estimation"`
}

type Version struct {
	ID           string     `dynamodbav:"id"`
	ProjectionID string     `dynamodbav:"projection_id"`
	Version      int        `dynamodbav:"version"`
	Name         string     `dynamodbav:"name"`
	Status       string     `dynamodbav:"status"`
	Estimation   Estimation `dynamodbav:"estimation"`
}

type Story struct {
	ID           string     `dynamodbav:"id"`
	ProjectionID string     `dynamodbav:"projection_id"`
	VersionID    string     `dynamodbav:"version_id"`
	Code         string     `dynamodbav:"code"`
	Summary      string     `dynamodbav:"summary"`
	Estimation   Estimation `dynamodbav:"estimation"`
}

type Task struct {
	ID           string     `dynamodbav:"id"`
	ProjectionID string     `dynamodbav:"projection_id"`
	VersionID    string     `dynamodbav:"version_id"`
	StoryID      string     `dynamodbav:"story_id"`
	TaskID       string     `dynamodbav:"task_id"`
	Code         string     `dynamodbav:"code"`
	Summary      string     `dynamodbav:"summary"`
	Status       string     `dynamodbav:"status"`
	Value        float64    `dynamodbav:"value"`
	Risk         float64    `dynamodbav:"risk"`
	Total        float64    `dynamodbav:"total"`
	Estimation   Estimation `dynamodbav:"estimation"`
}

type User struct {
	ID             string `dynamodbav:"id"`
	Email          string `dynamodbav:"email"`
	Name           string `dynamodbav:"name"`
	HashedPassword string `dynamodbav:"hashedPassword"`
	Salt           string `dynamodbav:"salt"`
}
