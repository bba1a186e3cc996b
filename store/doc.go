// Package store provides a DynamoDB data access layer for hierarchical
// tracking records.
//
// Gantry persists the two tracking hierarchies of a project-management
// backend (Project, Issue, SubIssue, Timelog and Projection, Version, Story,
// Task) as one DynamoDB table per entity type. A [Descriptor] binds each
// entity type to its table, its parent-key and root-key attributes, the GSIs
// serving parent- and root-scoped queries, and its validation, unique, and
// update schemas.
//
// # Operations
//
// The [Store] exposes the generic record lifecycle:
//
//   - GetByID / GetOne: absence is (nil, nil), not an error
//   - GetAll / GetAllByParent / GetAllByRoot: empty slice when nothing matches
//   - GetByIDs: batched lookup, empty input never touches the store
//   - CreateOne / CreateMany: validation, defaults, derivation, generated ids
//   - Update: schema-driven patch merge with optimistic locking
//   - DeleteOne: returns prior state, fails with ErrNotFound when absent
//   - DeleteByParent / DeleteByRoot: bulk cleanup, zero matches is success
//
// # Unique constraints
//
// Fields listed in Descriptor.Unique are reserved through hashed constraint
// records written transactionally with the entity, so two concurrent creates
// of the same project code cannot both succeed.
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrNotFound] - operation requires a record that doesn't exist
//   - [ErrValidation] - required field missing or malformed
//   - [ErrDuplicateValue] - unique constraint violated
//   - [ErrConcurrentModification] - optimistic lock failed
//   - [ErrUnavailable] - underlying store call failed; wraps the cause
package store
