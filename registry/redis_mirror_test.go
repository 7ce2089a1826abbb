package registry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/kind"
)

// setupTestRedis creates a miniredis instance and a client pointing at it.
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return mr, client
}

func TestRedisMirrorWritesIndex(t *testing.T) {
	mr, client := setupTestRedis(t)
	mirror := NewRedisMirror(client, "test")

	r := New(newTestTable(), WithEventSink(mirror))
	r.Populate(context.Background(), []Entry{
		{Instance: &fooRepository{}, Name: "FooRepository"},
		{Instance: &memoryCache{}, Name: "MemoryCache"},
		{Instance: &barRepository{}, Name: "BarRepository"},
	})

	tags, err := mr.List("test:tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"repository", "cache"}, tags)

	repos, err := mr.List("test:tags:repository")
	require.NoError(t, err)
	assert.Equal(t, []string{"FooRepository", "BarRepository"}, repos)

	assert.Equal(t, "3", mr.HGet("test:snapshot", "total"))
	assert.Len(t, mr.HGet("test:snapshot", "id"), 36)
}

func TestRedisMirrorLoadRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	mirror := NewRedisMirror(client, "roundtrip", WithMirrorTimeout(time.Second))

	r := New(newTestTable())
	r.Populate(context.Background(), []Entry{
		{Instance: &fooRepository{}, Name: "FooRepository"},
		{Instance: &barRepository{}, Name: "BarRepository"},
	})

	id, err := mirror.Write(context.Background(), r.Snapshot())
	require.NoError(t, err)

	loaded, err := mirror.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, id, loaded.ID)
	assert.Equal(t, []kind.Tag{"repository"}, loaded.Tags)
	assert.Equal(t, []string{"FooRepository", "BarRepository"}, loaded.Names["repository"])
	assert.Equal(t, 2, loaded.Total)
	assert.True(t, loaded.PopulatedAt.Equal(r.PopulatedAt()))
}

func TestRedisMirrorReplacesStaleTags(t *testing.T) {
	mr, client := setupTestRedis(t)
	mirror := NewRedisMirror(client, "stale")

	r := New(newTestTable(), WithEventSink(mirror))
	r.Populate(context.Background(), []Entry{{Instance: &fooRepository{}}, {Instance: &memoryCache{}}})
	require.True(t, mr.Exists("stale:tags:cache"))

	r.Populate(context.Background(), []Entry{{Instance: &barRepository{}}})

	assert.False(t, mr.Exists("stale:tags:cache"), "tags from the previous population must be removed")
	repos, err := mr.List("stale:tags:repository")
	require.NoError(t, err)
	assert.Equal(t, []string{"barRepository"}, repos)
}

func TestRedisMirrorLoadEmpty(t *testing.T) {
	_, client := setupTestRedis(t)
	mirror := NewRedisMirror(client, "")

	_, err := mirror.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestRedisMirrorFailureDoesNotAffectRegistry(t *testing.T) {
	mr, client := setupTestRedis(t)
	var buf bytes.Buffer
	mirror := NewRedisMirror(client, "down",
		WithMirrorLogger(core.NewLoggerWithOutput(&buf, "error", "json", "test")),
		WithMirrorTimeout(200*time.Millisecond))
	mr.Close()

	r := New(newTestTable(), WithEventSink(mirror))
	r.Populate(context.Background(), []Entry{{Instance: &fooRepository{}}})

	assert.Len(t, r.GetByTag("repository"), 1)
	assert.Contains(t, buf.String(), "Failed to mirror registry snapshot")

	_, err := mirror.Write(context.Background(), r.Snapshot())
	assert.True(t, core.IsRetryable(err))
}
