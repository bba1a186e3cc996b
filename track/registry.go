package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jacentio/gantry/sequence"
	"github.com/jacentio/gantry/store"
)

// ErrUnknownEntityType is returned by Registry.Get for a type it does not
// recognize.
var ErrUnknownEntityType = errors.New("gantry: unknown entity type")

// Registry constructs and caches one controller per entity type. All
// dependencies are injected through NewRegistry; two registries built over
// different stores share no state.
type Registry struct {
	store  *store.Store
	seq    *sequence.Generator
	config Config
	logger *slog.Logger

	mu          sync.Mutex
	controllers map[EntityType]*Controller

	timelog *TimelogController
	task    *TaskController
	user    *UserController
}

// New wires a registry over a raw DynamoDB client, building the store and
// the sequence generator from the configured table names.
func New(client store.Client, storeConfig store.Config, config Config, logger *slog.Logger) *Registry {
	config.validate()
	return NewRegistry(
		store.New(client, storeConfig),
		sequence.NewGenerator(client, config.CounterTable),
		config,
		logger,
	)
}

// NewRegistry wires a registry over the given store and sequence generator.
// A nil logger falls back to slog.Default().
func NewRegistry(s *store.Store, seq *sequence.Generator, config Config, logger *slog.Logger) *Registry {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:       s,
		seq:         seq,
		config:      config,
		logger:      logger,
		controllers: make(map[EntityType]*Controller),
	}
}

// Get returns the controller for the given entity type, constructing it on
// first use.
func (r *Registry) Get(t EntityType) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.controllers[t]; ok {
		return c, nil
	}

	var c *Controller
	switch t {
	case TypeUser:
		c = r.newUser()
	case TypeProject:
		c = r.newProject()
	case TypeIssue:
		c = r.newIssue()
	case TypeSubIssue:
		c = &Controller{store: r.store, desc: subIssueDescriptor(r.config)}
	case TypeTimelog:
		c = r.newTimelog()
	case TypeProjection:
		c = &Controller{store: r.store, desc: projectionDescriptor(r.config)}
	case TypeVersion:
		c = &Controller{store: r.store, desc: versionDescriptor(r.config)}
	case TypeStory:
		c = &Controller{store: r.store, desc: storyDescriptor(r.config)}
	case TypeTask:
		c = &Controller{store: r.store, desc: taskDescriptor(r.config)}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
	}

	r.controllers[t] = c
	return c, nil
}

// Project returns the project controller.
func (r *Registry) Project() *Controller {
	c, _ := r.Get(TypeProject)
	return c
}

// Issue returns the issue controller.
func (r *Registry) Issue() *Controller {
	c, _ := r.Get(TypeIssue)
	return c
}

// SubIssue returns the sub-issue controller.
func (r *Registry) SubIssue() *Controller {
	c, _ := r.Get(TypeSubIssue)
	return c
}

// Projection returns the projection controller.
func (r *Registry) Projection() *Controller {
	c, _ := r.Get(TypeProjection)
	return c
}

// Version returns the version controller.
func (r *Registry) Version() *Controller {
	c, _ := r.Get(TypeVersion)
	return c
}

// Story returns the story controller.
func (r *Registry) Story() *Controller {
	c, _ := r.Get(TypeStory)
	return c
}

// Timelog returns the timelog controller with its date-range helpers.
func (r *Registry) Timelog() *TimelogController {
	r.Get(TypeTimelog)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timelog
}

// Task returns the task controller with its estimation helpers.
func (r *Registry) Task() *TaskController {
	r.Get(TypeTask)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.task == nil {
		r.task = &TaskController{Controller: r.controllers[TypeTask]}
	}
	return r.task
}

// User returns the user controller with its credential helpers.
func (r *Registry) User() *UserController {
	r.Get(TypeUser)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.user == nil {
		r.user = &UserController{Controller: r.controllers[TypeUser]}
	}
	return r.user
}

// Sequence returns the generator backing issue numbering.
func (r *Registry) Sequence() *sequence.Generator {
	return r.seq
}

func (r *Registry) newProject() *Controller {
	return &Controller{
		store: r.store,
		desc:  projectDescriptor(r.config),
		postCreate: func(ctx context.Context, item *store.Item) error {
			err := r.seq.Initialize(ctx, item.ID, 0, 1)
			if err != nil && !errors.Is(err, sequence.ErrDuplicateCounter) {
				return err
			}
			return nil
		},
		postDelete: func(ctx context.Context, item *store.Item) {
			if err := r.seq.Remove(ctx, item.ID); err != nil {
				r.logger.Warn("failed to remove issue counter",
					"projectId", item.ID, "error", err)
			}
		},
	}
}

func (r *Registry) newTimelog() *Controller {
	tc := &TimelogController{}
	c := &Controller{
		store:     r.store,
		desc:      timelogDescriptor(r.config),
		preCreate: tc.normalizeDateLog,
	}
	tc.Controller = c
	r.timelog = tc
	return c
}
