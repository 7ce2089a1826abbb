package kind

import (
	"bytes"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/itsneelabh/kindreg/core"
)

type fooRepository struct{}
type barRepository struct{}
type clock struct{}

func TestAttachTag(t *testing.T) {
	table := NewTypeTable()

	Annotate[fooRepository](table, AttachTag("repository"))

	tag, ok := table.ReadTag(TypeFor[fooRepository]())
	require.True(t, ok)
	assert.Equal(t, Tag("repository"), tag)

	_, ok = table.ReadTag(TypeFor[clock]())
	assert.False(t, ok, "untagged type must have no tag")
}

func TestTypeNormalization(t *testing.T) {
	table := NewTypeTable()
	Annotate[*fooRepository](table, AttachTag("repository"))

	assert.Equal(t, TypeFor[fooRepository](), TypeOf(&fooRepository{}))
	assert.Equal(t, TypeOf(fooRepository{}), TypeOf(&fooRepository{}))

	tag, ok := table.ReadTag(TypeOf(fooRepository{}))
	require.True(t, ok, "pointer and value types name the same component type")
	assert.Equal(t, Tag("repository"), tag)

	assert.Nil(t, TypeOf(nil))
	_, ok = table.ReadTag(nil)
	assert.False(t, ok)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "fooRepository", TypeName(TypeOf(&fooRepository{})))
	assert.Equal(t, "[]string", TypeName(TypeOf([]string{})))
	assert.Equal(t, "<nil>", TypeName(nil))
}

func TestRegisterTagSameTagIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	logger := core.NewLoggerWithOutput(&buf, "debug", "json", "test")
	table := NewTypeTable(WithLogger(logger))

	Annotate[fooRepository](table, AttachTag("repository"))
	Annotate[fooRepository](table, AttachTag("repository"))

	tag, _ := table.ReadTag(TypeFor[fooRepository]())
	assert.Equal(t, Tag("repository"), tag)
	assert.Empty(t, buf.String(), "re-applying the same tag should not warn")
}

func TestRegisterTagConflictLastWriteWins(t *testing.T) {
	var buf bytes.Buffer
	logger := core.NewLoggerWithOutput(&buf, "debug", "json", "test")
	table := NewTypeTable(WithLogger(logger))

	Annotate[fooRepository](table, AttachTag("repository"))
	Annotate[fooRepository](table, AttachTag("cache"))

	tag, ok := table.ReadTag(TypeFor[fooRepository]())
	require.True(t, ok)
	assert.Equal(t, Tag("cache"), tag)

	out := buf.String()
	assert.Contains(t, out, "Conflicting tag applied to component type")
	assert.Contains(t, out, `"previous":"repository"`)
	assert.Contains(t, out, `"component":"kindreg/kind"`)
}

func TestRegisterTagIgnoresEmptyTag(t *testing.T) {
	var buf bytes.Buffer
	table := NewTypeTable(WithLogger(core.NewLoggerWithOutput(&buf, "warn", "json", "test")))

	Annotate[fooRepository](table, AttachTag(""))

	_, ok := table.ReadTag(TypeFor[fooRepository]())
	assert.False(t, ok)
	assert.Equal(t, 0, table.Len())
	assert.Contains(t, buf.String(), "Ignoring empty tag")
}

func TestInjectable(t *testing.T) {
	table := NewTypeTable()

	assert.False(t, table.IsInjectable(TypeFor[clock]()))
	Annotate[clock](table, Injectable())
	assert.True(t, table.IsInjectable(TypeFor[clock]()))
	assert.True(t, table.IsInjectable(TypeOf(&clock{})))

	_, tagged := table.ReadTag(TypeFor[clock]())
	assert.False(t, tagged, "Injectable alone must not tag the type")
}

func TestComponent(t *testing.T) {
	table := NewTypeTable()
	Annotate[barRepository](table, Component("repository"))

	tag, ok := table.ReadTag(TypeFor[barRepository]())
	require.True(t, ok)
	assert.Equal(t, Tag("repository"), tag)
	assert.True(t, table.IsInjectable(TypeFor[barRepository]()))
}

func TestComposeEmptyIsNoOp(t *testing.T) {
	table := NewTypeTable()
	Annotate[fooRepository](table, Compose())
	Annotate[fooRepository](table, Compose(nil, nil))

	assert.Equal(t, 0, table.Len())
	assert.False(t, table.IsInjectable(TypeFor[fooRepository]()))
}

func TestComposeAppliesRightmostFirst(t *testing.T) {
	var order []string
	record := func(name string) Annotation {
		return func(*TypeTable, reflect.Type) { order = append(order, name) }
	}

	Annotate[fooRepository](NewTypeTable(), Compose(record("a"), record("b"), record("c")))

	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestComposeLastTagInListWinsOnConflict(t *testing.T) {
	// Rightmost is applied first, so the leftmost tag is written last.
	table := NewTypeTable()
	Annotate[fooRepository](table, Compose(AttachTag("left"), AttachTag("right")))

	tag, _ := table.ReadTag(TypeFor[fooRepository]())
	assert.Equal(t, Tag("left"), tag)
}

func TestComposeIsPure(t *testing.T) {
	table := NewTypeTable()
	repo := Component("repository")

	Annotate[fooRepository](table, repo)
	Annotate[barRepository](table, repo)

	for _, typ := range []reflect.Type{TypeFor[fooRepository](), TypeFor[barRepository]()} {
		tag, ok := table.ReadTag(typ)
		require.True(t, ok, typ.String())
		assert.Equal(t, Tag("repository"), tag)
		assert.True(t, table.IsInjectable(typ))
	}
}

func TestComposeOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 12).Draw(t, "n")

		var applied []int
		annotations := make([]Annotation, n)
		for i := range annotations {
			i := i
			annotations[i] = func(*TypeTable, reflect.Type) { applied = append(applied, i) }
		}

		Compose(annotations...)(NewTypeTable(), TypeFor[clock]())

		require.Len(t, applied, n)
		for j, idx := range applied {
			require.Equal(t, n-1-j, idx, "annotations must be applied in reverse order")
		}
	})
}

func TestTypeTableConcurrentAccess(t *testing.T) {
	table := NewTypeTable()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			Annotate[fooRepository](table, Component("repository"))
		}()
		go func() {
			defer wg.Done()
			_, _ = table.ReadTag(TypeFor[fooRepository]())
			_ = table.IsInjectable(TypeFor[fooRepository]())
		}()
	}
	wg.Wait()

	tag, ok := table.ReadTag(TypeFor[fooRepository]())
	require.True(t, ok)
	assert.Equal(t, Tag("repository"), tag)
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	table := NewTypeTable()
	table.SetLogger(core.NewLoggerWithOutput(&buf, "warn", "text", "test"))

	Annotate[fooRepository](table, AttachTag("a"), AttachTag("b"))

	assert.True(t, strings.Contains(buf.String(), "[kindreg/kind]"), buf.String())
}
