package stream

import "github.com/jacentio/gantry/track"

// Scope says which reference on the child points at the removed record.
type Scope int

const (
	// ByParent sweeps children whose direct parent reference matches.
	ByParent Scope = iota
	// ByRoot sweeps children whose root reference matches.
	ByRoot
)

// Dependent names a child entity type swept when its owner is removed.
type Dependent struct {
	Child track.EntityType
	Scope Scope
}

// Relationships maps an entity type to the dependents swept on its removal.
type Relationships struct {
	byParent map[track.EntityType][]Dependent
}

// NewRelationships returns an empty relationship registry.
func NewRelationships() *Relationships {
	return &Relationships{byParent: make(map[track.EntityType][]Dependent)}
}

// Register adds a dependent for the given entity type.
func (r *Relationships) Register(parent track.EntityType, dep Dependent) {
	r.byParent[parent] = append(r.byParent[parent], dep)
}

// Of returns the dependents registered for the given entity type, in
// registration order.
func (r *Relationships) Of(parent track.EntityType) []Dependent {
	return r.byParent[parent]
}

// DefaultRelationships describes the time-tracking hierarchy. Timelogs and
// sub-issues go first so removing an issue or project never strands them.
func DefaultRelationships() *Relationships {
	r := NewRelationships()
	r.Register(track.TypeProject, Dependent{Child: track.TypeTimelog, Scope: ByRoot})
	r.Register(track.TypeProject, Dependent{Child: track.TypeSubIssue, Scope: ByRoot})
	r.Register(track.TypeProject, Dependent{Child: track.TypeIssue, Scope: ByParent})
	r.Register(track.TypeIssue, Dependent{Child: track.TypeTimelog, Scope: ByParent})
	r.Register(track.TypeIssue, Dependent{Child: track.TypeSubIssue, Scope: ByParent})
	return r
}
