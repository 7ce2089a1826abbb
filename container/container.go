// Package container is the minimal instantiation system that feeds the
// registry. Providers are registered in order, built once at startup and
// then enumerated as registry entries.
//
// It is not a dependency-injection container: constructors
// receive only a context and there is no lifecycle beyond Build.
package container

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/kind"
	"github.com/itsneelabh/kindreg/registry"
)

// Constructor builds one component instance.
type Constructor func(ctx context.Context) (any, error)

type provider struct {
	name      string
	typ       reflect.Type
	construct Constructor
}

// Container holds providers and, after Build, the constructed instances.
type Container struct {
	table  *kind.TypeTable
	logger core.Logger

	mu        sync.RWMutex
	providers []provider
	names     map[string]struct{}
	built     bool
	entries   []registry.Entry
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the container logger.
func WithLogger(logger core.Logger) Option {
	return func(c *Container) {
		c.logger = core.ComponentLogger(logger, "kindreg/container")
	}
}

// New creates an empty container that checks injectability against table.
// A nil table means kind.Default.
func New(table *kind.TypeTable, opts ...Option) *Container {
	if table == nil {
		table = kind.Default
	}
	c := &Container{
		table:  table,
		logger: &core.NoOpLogger{},
		names:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provide registers a constructor for a component of type typ. The type
// must be marked injectable. An empty name defaults to the type name.
// Providers cannot be added once Build has run.
func (c *Container) Provide(name string, typ reflect.Type, construct Constructor) error {
	if typ == nil || construct == nil {
		return &core.FrameworkError{
			Op:      "container.Provide",
			Kind:    "container",
			ID:      name,
			Message: "provider requires a type and a constructor",
			Err:     core.ErrInvalidConfiguration,
		}
	}
	if name == "" {
		name = kind.TypeName(typ)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built {
		return &core.FrameworkError{Op: "container.Provide", Kind: "container", ID: name, Err: core.ErrAlreadyStarted}
	}
	if !c.table.IsInjectable(typ) {
		return &core.FrameworkError{Op: "container.Provide", Kind: "container", ID: name, Err: core.ErrNotInjectable}
	}
	if _, dup := c.names[name]; dup {
		return &core.FrameworkError{Op: "container.Provide", Kind: "container", ID: name, Err: core.ErrDuplicateProvider}
	}

	c.names[name] = struct{}{}
	c.providers = append(c.providers, provider{name: name, typ: typ, construct: construct})
	return nil
}

// Provide registers a typed constructor for T.
func Provide[T any](c *Container, name string, construct func(ctx context.Context) (T, error)) error {
	if construct == nil {
		return c.Provide(name, kind.TypeFor[T](), nil)
	}
	return c.Provide(name, kind.TypeFor[T](), func(ctx context.Context) (any, error) {
		return construct(ctx)
	})
}

// Build constructs every provider once, in registration order. The first
// constructor error aborts the build and is returned wrapped in a
// FrameworkError that matches both core.ErrConstructionFailed and the
// original error.
func (c *Container) Build(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.built {
		return &core.FrameworkError{Op: "container.Build", Kind: "container", Err: core.ErrAlreadyStarted}
	}

	entries := make([]registry.Entry, 0, len(c.providers))
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return &core.FrameworkError{
				Op:   "container.Build",
				Kind: "container",
				ID:   p.name,
				Err:  fmt.Errorf("%w: %w", core.ErrContextCanceled, err),
			}
		}

		instance, err := p.construct(ctx)
		if err != nil {
			c.logger.Error("Component construction failed", map[string]interface{}{
				"name":  p.name,
				"type":  kind.TypeName(p.typ),
				"error": err,
			})
			return &core.FrameworkError{
				Op:   "container.Build",
				Kind: "container",
				ID:   p.name,
				Err:  fmt.Errorf("%w: %w", core.ErrConstructionFailed, err),
			}
		}
		if instance == nil {
			return &core.FrameworkError{
				Op:   "container.Build",
				Kind: "container",
				ID:   p.name,
				Err:  fmt.Errorf("%w: constructor returned nil", core.ErrConstructionFailed),
			}
		}

		c.logger.Debug("Component constructed", map[string]interface{}{
			"name": p.name,
			"type": kind.TypeName(p.typ),
		})
		entries = append(entries, registry.Entry{Type: p.typ, Instance: instance, Name: p.name})
	}

	c.entries = entries
	c.built = true

	c.logger.Info("Container built", map[string]interface{}{
		"components": len(entries),
	})
	return nil
}

// Entries returns the constructed components in registration order, ready
// for registry.Populate. It is empty before Build.
func (c *Container) Entries() []registry.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]registry.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get returns the instance built for name.
func (c *Container) Get(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Name == name {
			return e.Instance, true
		}
	}
	return nil, false
}

// Built reports whether Build has completed.
func (c *Container) Built() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.built
}

// Len returns the number of registered providers.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.providers)
}
