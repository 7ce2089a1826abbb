// Package registry discovers constructed components by their tag and
// serves them to consumers grouped by tag.
//
// A Registry is populated once, after the instantiation system has built
// every component, and is read-only afterwards. Lookups never fail: an
// unknown tag yields an empty slice.
package registry

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/kind"
)

// Entry is one constructed component handed to Populate by the
// instantiation system.
type Entry struct {
	// Type is the component type. When nil the type of Instance is used.
	Type reflect.Type
	// Instance is the constructed component.
	Instance any
	// Name identifies the component in events and listings. Defaults to
	// the type name.
	Name string
}

// index is an immutable view of one population.
type index struct {
	byTag       map[kind.Tag][]any
	names       map[kind.Tag][]string
	tags        []kind.Tag
	all         []any
	allNames    []string
	populatedAt time.Time
}

var emptyIndex = &index{
	byTag: map[kind.Tag][]any{},
	names: map[kind.Tag][]string{},
}

// Registry is the tag-indexed component registry.
type Registry struct {
	table  *kind.TypeTable
	logger core.Logger
	sink   EventSink
	tracer trace.Tracer

	current     atomic.Pointer[index]
	populateMu  sync.Mutex
	populations atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger core.Logger) Option {
	return func(r *Registry) {
		r.logger = core.ComponentLogger(logger, "kindreg/registry")
	}
}

// WithEventSink adds a sink receiving discovery events. May be given more
// than once; sinks are called in the order they were added.
func WithEventSink(sink EventSink) Option {
	return func(r *Registry) {
		if sink == nil {
			return
		}
		if r.sink == nil {
			r.sink = sink
			return
		}
		r.sink = MultiSink{r.sink, sink}
	}
}

// WithTracer sets the tracer used for the population span.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Registry) {
		if tracer != nil {
			r.tracer = tracer
		}
	}
}

// New creates an empty registry that reads tags from table. A nil table
// means kind.Default.
func New(table *kind.TypeTable, opts ...Option) *Registry {
	if table == nil {
		table = kind.Default
	}
	r := &Registry{
		table:  table,
		logger: &core.NoOpLogger{},
		tracer: noop.NewTracerProvider().Tracer("kindreg/registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.current.Store(emptyIndex)
	return r
}

// Populate scans entries once and rebuilds the index. Untagged entries are
// skipped. Tagged entries are grouped by tag in input order, and one
// discovery event is emitted per tagged entry.
//
// Populate is meant to run once at the construction barrier. A second call
// replaces the index wholesale and logs a warning.
func (r *Registry) Populate(ctx context.Context, entries []Entry) {
	ctx, span := r.tracer.Start(ctx, "registry.Populate",
		trace.WithAttributes(attribute.Int("kindreg.entries", len(entries))))
	defer span.End()

	r.populateMu.Lock()
	defer r.populateMu.Unlock()

	idx := &index{
		byTag: make(map[kind.Tag][]any),
		names: make(map[kind.Tag][]string),
	}
	discovered := make([]DiscoveryEvent, 0, len(entries))

	for _, e := range entries {
		if e.Instance == nil {
			r.logger.Warn("Skipping nil component instance", map[string]interface{}{
				"name": e.Name,
			})
			continue
		}

		typ := e.Type
		if typ == nil {
			typ = kind.TypeOf(e.Instance)
		}

		tag, ok := r.table.ReadTag(typ)
		if !ok {
			continue
		}

		name := e.Name
		if name == "" {
			name = kind.TypeName(typ)
		}

		if _, seen := idx.byTag[tag]; !seen {
			idx.tags = append(idx.tags, tag)
		}
		idx.byTag[tag] = append(idx.byTag[tag], e.Instance)
		idx.names[tag] = append(idx.names[tag], name)
		idx.all = append(idx.all, e.Instance)
		idx.allNames = append(idx.allNames, name)

		discovered = append(discovered, DiscoveryEvent{Type: tag, Name: name})
	}
	idx.populatedAt = time.Now()

	if r.populations.Add(1) > 1 {
		r.logger.Warn("Registry repopulated, previous index replaced", map[string]interface{}{
			"population": r.populations.Load(),
		})
	}
	r.current.Store(idx)

	if r.sink != nil {
		for _, ev := range discovered {
			r.sink.Discovered(ctx, ev)
		}
		if obs, ok := r.sink.(PopulateObserver); ok {
			obs.Populated(ctx, idx.snapshot())
		}
	}

	span.SetAttributes(
		attribute.Int("kindreg.components", len(idx.all)),
		attribute.Int("kindreg.tags", len(idx.tags)),
	)
	span.SetStatus(codes.Ok, "")

	r.logger.Info("Registry populated", map[string]interface{}{
		"entries":    len(entries),
		"components": len(idx.all),
		"tags":       len(idx.tags),
	})
}

// GetByTag returns the components carrying tag in discovery order. The
// result is a fresh slice the caller may modify. An empty tag means no
// filter and is equivalent to All.
func (r *Registry) GetByTag(tag kind.Tag) []any {
	if tag.IsZero() {
		return r.All()
	}
	items := r.current.Load().byTag[tag]
	out := make([]any, len(items))
	copy(out, items)
	return out
}

// All returns every tagged component in scan order.
func (r *Registry) All() []any {
	items := r.current.Load().all
	out := make([]any, len(items))
	copy(out, items)
	return out
}

// Names returns the component names for tag in discovery order. An empty
// tag returns every name.
func (r *Registry) Names(tag kind.Tag) []string {
	idx := r.current.Load()
	src := idx.names[tag]
	if tag.IsZero() {
		src = idx.allNames
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Tags returns the discovered tags in first-seen order.
func (r *Registry) Tags() []kind.Tag {
	tags := r.current.Load().tags
	out := make([]kind.Tag, len(tags))
	copy(out, tags)
	return out
}

// Count returns the number of components carrying tag, or of all tagged
// components for the empty tag.
func (r *Registry) Count(tag kind.Tag) int {
	idx := r.current.Load()
	if tag.IsZero() {
		return len(idx.all)
	}
	return len(idx.byTag[tag])
}

// Populated reports whether Populate has completed at least once.
func (r *Registry) Populated() bool {
	return r.populations.Load() > 0
}

// PopulatedAt returns when the current index was built, or the zero time.
func (r *Registry) PopulatedAt() time.Time {
	return r.current.Load().populatedAt
}

// Snapshot returns a serializable summary of the current index.
func (r *Registry) Snapshot() Snapshot {
	return r.current.Load().snapshot()
}

// ByTag returns the components carrying tag that implement T, in
// discovery order. Components that do not implement T are skipped and
// logged.
func ByTag[T any](r *Registry, tag kind.Tag) []T {
	items := r.GetByTag(tag)
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, ok := item.(T)
		if !ok {
			r.logger.Warn("Component does not implement requested interface", map[string]interface{}{
				"tag":       tag.String(),
				"type":      kind.TypeName(kind.TypeOf(item)),
				"interface": reflect.TypeOf((*T)(nil)).Elem().String(),
			})
			continue
		}
		out = append(out, v)
	}
	return out
}

// Snapshot summarizes one population of the registry.
type Snapshot struct {
	Tags        []kind.Tag            `json:"tags"`
	Names       map[kind.Tag][]string `json:"names"`
	Total       int                   `json:"total"`
	PopulatedAt time.Time             `json:"populated_at"`
}

func (idx *index) snapshot() Snapshot {
	s := Snapshot{
		Tags:        append([]kind.Tag{}, idx.tags...),
		Names:       make(map[kind.Tag][]string, len(idx.names)),
		Total:       len(idx.all),
		PopulatedAt: idx.populatedAt,
	}
	for tag, names := range idx.names {
		s.Names[tag] = append([]string{}, names...)
	}
	return s
}
