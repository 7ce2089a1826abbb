// Package components holds the stock components a kindreg process is built
// from. Each type declares its own category in init; nothing else keeps a
// list of repositories or caches.
package components

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/itsneelabh/kindreg/container"
	"github.com/itsneelabh/kindreg/kind"
)

// Categories used by the stock components.
const (
	TagRepository kind.Tag = "repository"
	TagCache      kind.Tag = "cache"
)

const (
	DefaultCacheExpiration = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

func init() {
	Annotate(kind.Default)
}

// Annotate records the stock components' tags and injectability in table.
func Annotate(table *kind.TypeTable) {
	kind.Annotate[FooRepository](table, kind.Component(TagRepository))
	kind.Annotate[BarRepository](table, kind.Component(TagRepository))
	kind.Annotate[MemoryCache](table, kind.Component(TagCache))
	kind.Annotate[Clock](table, kind.Injectable())
}

// Provide registers constructors for every stock component with c.
// Registration order is the order the registry later discovers them in.
func Provide(c *container.Container) error {
	if err := container.Provide(c, "foo-repository", NewFooRepository); err != nil {
		return err
	}
	if err := container.Provide(c, "memory-cache", NewMemoryCache); err != nil {
		return err
	}
	if err := container.Provide(c, "bar-repository", NewBarRepository); err != nil {
		return err
	}
	return container.Provide(c, "clock", NewClock)
}

// FooRepository is an in-memory key/value repository.
type FooRepository struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewFooRepository(context.Context) (*FooRepository, error) {
	return &FooRepository{data: make(map[string]string)}, nil
}

func (r *FooRepository) HealthCheck() string { return "FooRepository" }

func (r *FooRepository) Put(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = value
}

func (r *FooRepository) Get(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	return v, ok
}

// BarRepository is an append-only record log.
type BarRepository struct {
	mu      sync.Mutex
	records []string
}

func NewBarRepository(context.Context) (*BarRepository, error) {
	return &BarRepository{}, nil
}

func (r *BarRepository) HealthCheck() string { return "BarRepository" }

func (r *BarRepository) Append(record string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return len(r.records)
}

func (r *BarRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// MemoryCache is an expiring in-process cache. It is tagged "cache" and
// has no HealthCheck, so a repository monitor never sees it.
type MemoryCache struct {
	cache *gocache.Cache
}

func NewMemoryCache(context.Context) (*MemoryCache, error) {
	return &MemoryCache{cache: gocache.New(DefaultCacheExpiration, DefaultCleanupInterval)}, nil
}

// Set stores value under key. A zero ttl uses DefaultCacheExpiration.
func (c *MemoryCache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, value, ttl)
}

func (c *MemoryCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c *MemoryCache) Delete(key string) {
	c.cache.Delete(key)
}

func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}

// Clock is injectable but carries no tag, so the registry skips it.
type Clock struct{}

func NewClock(context.Context) (*Clock, error) {
	return &Clock{}, nil
}

func (*Clock) Now() time.Time { return time.Now().UTC() }
