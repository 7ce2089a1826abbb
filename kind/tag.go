// Package kind provides the tagging primitive used to declare that a
// component type belongs to a semantic category.
//
// Tags are recorded in an explicit TypeTable rather than discovered through
// reflection over struct fields. A component package attaches its tag once,
// typically from init:
//
//	func init() {
//	    kind.Annotate[FooRepository](kind.Default, kind.Component("repository"))
//	}
//
// The registry later asks the same table which tag, if any, a constructed
// instance's type carries.
package kind

import (
	"reflect"
	"sync"

	"github.com/itsneelabh/kindreg/core"
)

// Tag names a category of components. The zero Tag is never a valid
// category.
type Tag string

func (t Tag) String() string { return string(t) }

// IsZero reports whether t is the empty tag.
func (t Tag) IsZero() bool { return t == "" }

// TypeTable maps component types to their tag and records which types the
// instantiation system may construct. It is safe for concurrent use.
type TypeTable struct {
	mu         sync.RWMutex
	tags       map[reflect.Type]Tag
	injectable map[reflect.Type]struct{}
	logger     core.Logger
}

// TableOption configures a TypeTable.
type TableOption func(*TypeTable)

// WithLogger sets the logger used to report tag conflicts.
func WithLogger(logger core.Logger) TableOption {
	return func(t *TypeTable) {
		t.logger = core.ComponentLogger(logger, "kindreg/kind")
	}
}

// NewTypeTable creates an empty table.
func NewTypeTable(opts ...TableOption) *TypeTable {
	t := &TypeTable{
		tags:       make(map[reflect.Type]Tag),
		injectable: make(map[reflect.Type]struct{}),
		logger:     &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Default is the process-wide table used by component packages that
// register their tags at init time.
var Default = NewTypeTable()

// SetLogger replaces the table's logger. Useful for Default, which is
// created before any logger exists.
func (t *TypeTable) SetLogger(logger core.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logger = core.ComponentLogger(logger, "kindreg/kind")
}

// RegisterTag records tag for typ. Registering the same tag twice is a
// no-op. Registering a different tag replaces the previous one and logs a
// warning. Empty tags and nil types are ignored.
func (t *TypeTable) RegisterTag(typ reflect.Type, tag Tag) {
	typ = normalize(typ)

	t.mu.Lock()
	defer t.mu.Unlock()

	if typ == nil {
		t.logger.Warn("Ignoring tag for nil component type", map[string]interface{}{
			"tag": tag.String(),
		})
		return
	}
	if tag.IsZero() {
		t.logger.Warn("Ignoring empty tag", map[string]interface{}{
			"type": typ.String(),
		})
		return
	}

	if prev, ok := t.tags[typ]; ok {
		if prev == tag {
			return
		}
		t.logger.Warn("Conflicting tag applied to component type", map[string]interface{}{
			"type":     typ.String(),
			"previous": prev.String(),
			"tag":      tag.String(),
		})
	}
	t.tags[typ] = tag
}

// ReadTag returns the tag attached to typ, if any.
func (t *TypeTable) ReadTag(typ reflect.Type) (Tag, bool) {
	typ = normalize(typ)
	if typ == nil {
		return "", false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	tag, ok := t.tags[typ]
	return tag, ok
}

// MarkInjectable records that typ may be constructed by the instantiation
// system.
func (t *TypeTable) MarkInjectable(typ reflect.Type) {
	typ = normalize(typ)
	if typ == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.injectable[typ] = struct{}{}
}

// IsInjectable reports whether typ was marked injectable.
func (t *TypeTable) IsInjectable(typ reflect.Type) bool {
	typ = normalize(typ)
	if typ == nil {
		return false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.injectable[typ]
	return ok
}

// Len returns the number of tagged types.
func (t *TypeTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tags)
}

// TypeOf returns the component type of v. Pointers are dereferenced so
// that Foo and *Foo name the same component type. TypeOf(nil) is nil.
func TypeOf(v any) reflect.Type {
	if v == nil {
		return nil
	}
	return normalize(reflect.TypeOf(v))
}

// TypeFor returns the component type of T.
func TypeFor[T any]() reflect.Type {
	return normalize(reflect.TypeOf((*T)(nil)).Elem())
}

// TypeName returns a short, human-readable name for typ, used in discovery
// events and logs.
func TypeName(typ reflect.Type) string {
	typ = normalize(typ)
	if typ == nil {
		return "<nil>"
	}
	if name := typ.Name(); name != "" {
		return name
	}
	return typ.String()
}

func normalize(typ reflect.Type) reflect.Type {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	return typ
}
