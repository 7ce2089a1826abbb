package kind

import "reflect"

// Annotation is a type-level marker. Applying it to a component type
// records some property of that type in a TypeTable.
type Annotation func(table *TypeTable, typ reflect.Type)

// AttachTag returns an annotation that tags the type it is applied to.
func AttachTag(tag Tag) Annotation {
	return func(table *TypeTable, typ reflect.Type) {
		table.RegisterTag(typ, tag)
	}
}

// Injectable returns an annotation that marks the type as constructible by
// the instantiation system.
func Injectable() Annotation {
	return func(table *TypeTable, typ reflect.Type) {
		table.MarkInjectable(typ)
	}
}

// Compose combines annotations into one. The composed annotation applies
// its inputs rightmost first, matching nested decorator application.
// Nil inputs are skipped and an empty list yields a no-op.
func Compose(annotations ...Annotation) Annotation {
	list := make([]Annotation, 0, len(annotations))
	for _, a := range annotations {
		if a != nil {
			list = append(list, a)
		}
	}
	return func(table *TypeTable, typ reflect.Type) {
		for i := len(list) - 1; i >= 0; i-- {
			list[i](table, typ)
		}
	}
}

// Component is the usual declaration for a tagged, constructible component.
func Component(tag Tag) Annotation {
	return Compose(Injectable(), AttachTag(tag))
}

// Apply applies annotations to typ in order.
func (t *TypeTable) Apply(typ reflect.Type, annotations ...Annotation) {
	for _, a := range annotations {
		if a != nil {
			a(t, typ)
		}
	}
}

// Annotate applies annotations to the component type T.
func Annotate[T any](table *TypeTable, annotations ...Annotation) {
	table.Apply(TypeFor[T](), annotations...)
}
