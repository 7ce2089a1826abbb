package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/kind"
	"github.com/itsneelabh/kindreg/monitor"
	"github.com/itsneelabh/kindreg/registry"
)

type fooRepository struct{}

func (*fooRepository) HealthCheck() string { return "FooRepository" }

type barRepository struct{}

func (*barRepository) HealthCheck() string { return "BarRepository" }

type memoryCache struct{}

type fakeMirror struct {
	snap *registry.MirroredSnapshot
	err  error
}

func (f *fakeMirror) Load(context.Context) (*registry.MirroredSnapshot, error) {
	return f.snap, f.err
}

type fixture struct {
	registry *registry.Registry
	monitor  *monitor.Monitor
}

func newFixture(t *testing.T, populate bool) *fixture {
	t.Helper()

	table := kind.NewTypeTable()
	kind.Annotate[fooRepository](table, kind.Component("repository"))
	kind.Annotate[barRepository](table, kind.Component("repository"))
	kind.Annotate[memoryCache](table, kind.Component("cache"))

	f := &fixture{
		registry: registry.New(table),
		monitor:  monitor.New("repository"),
	}
	if populate {
		f.registry.Populate(context.Background(), []registry.Entry{
			{Instance: &fooRepository{}, Name: "foo"},
			{Instance: &memoryCache{}, Name: "cache"},
			{Instance: &barRepository{}, Name: "bar"},
		})
		f.monitor.Init(f.registry)
	}
	return f
}

func testConfig() *core.Config {
	cfg := core.DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = 0
	cfg.HTTP.ShutdownTimeout = 2 * time.Second
	return cfg
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReturnsCheckResults(t *testing.T) {
	f := newFixture(t, true)
	s := New(testConfig(), f.registry, f.monitor)

	rec := do(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var checks []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
	assert.Equal(t, []string{"FooRepository", "BarRepository"}, checks)
}

func TestHealthBeforeInitIsEmptyArray(t *testing.T) {
	f := newFixture(t, false)
	s := New(testConfig(), f.registry, f.monitor)

	rec := do(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHealthUsesConfiguredPath(t *testing.T) {
	f := newFixture(t, true)
	cfg := testConfig()
	cfg.HTTP.HealthCheckPath = "/healthz"
	s := New(cfg, f.registry, f.monitor)

	assert.Equal(t, http.StatusOK, do(t, s.Handler(), "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), "/health").Code)
}

func TestReadiness(t *testing.T) {
	f := newFixture(t, false)
	s := New(testConfig(), f.registry, f.monitor)

	rec := do(t, s.Handler(), "/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry not populated")

	f.registry.Populate(context.Background(), nil)
	rec = do(t, s.Handler(), "/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "monitor not initialised")

	f.monitor.Init(f.registry)
	rec = do(t, s.Handler(), "/readiness")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestRegistryListing(t *testing.T) {
	f := newFixture(t, true)
	s := New(testConfig(), f.registry, f.monitor)

	rec := do(t, s.Handler(), "/api/registry")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RegistryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, map[kind.Tag]int{"repository": 2, "cache": 1}, resp.Tags)
	assert.Equal(t, []kind.Tag{"repository", "cache"}, resp.Order)
	assert.Equal(t, 3, resp.Total)
	require.NotNil(t, resp.PopulatedAt)
}

func TestRegistryListingBeforePopulate(t *testing.T) {
	f := newFixture(t, false)
	s := New(testConfig(), f.registry, f.monitor)

	rec := do(t, s.Handler(), "/api/registry")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"tags":{},"order":[],"total":0}`, rec.Body.String())
}

func TestTagListing(t *testing.T) {
	f := newFixture(t, true)
	s := New(testConfig(), f.registry, f.monitor)

	tests := []struct {
		path  string
		tag   kind.Tag
		names []string
	}{
		{"/api/registry/repository", "repository", []string{"foo", "bar"}},
		{"/api/registry/cache", "cache", []string{"cache"}},
		{"/api/registry/queue", "queue", []string{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			rec := do(t, s.Handler(), tt.path)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp TagResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.tag, resp.Tag)
			assert.Equal(t, len(tt.names), resp.Count)
			assert.Equal(t, tt.names, resp.Names)
		})
	}
}

func TestReport(t *testing.T) {
	f := newFixture(t, true)
	s := New(testConfig(), f.registry, f.monitor)

	rec := do(t, s.Handler(), "/api/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep monitor.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, kind.Tag("repository"), rep.Tag)
	assert.Equal(t, core.HealthHealthy, rep.Status)
	assert.Equal(t, "ready", rep.State)
	assert.Equal(t, []string{"FooRepository", "BarRepository"}, rep.Checks)
}

func TestMirrorEndpoint(t *testing.T) {
	f := newFixture(t, true)

	t.Run("not configured", func(t *testing.T) {
		s := New(testConfig(), f.registry, f.monitor)
		assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), "/api/mirror").Code)
	})

	t.Run("nothing mirrored", func(t *testing.T) {
		m := &fakeMirror{err: &core.FrameworkError{Op: "RedisMirror.Load", Err: core.ErrNotInitialized}}
		s := New(testConfig(), f.registry, f.monitor, WithMirror(m))
		rec := do(t, s.Handler(), "/api/mirror")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "no snapshot mirrored yet")
	})

	t.Run("store unavailable", func(t *testing.T) {
		m := &fakeMirror{err: fmt.Errorf("dial tcp: %w", core.ErrConnectionFailed)}
		s := New(testConfig(), f.registry, f.monitor, WithMirror(m))
		assert.Equal(t, http.StatusBadGateway, do(t, s.Handler(), "/api/mirror").Code)
	})

	t.Run("mirrored", func(t *testing.T) {
		snap := f.registry.Snapshot()
		m := &fakeMirror{snap: &registry.MirroredSnapshot{ID: "snap-1", Snapshot: snap}}
		s := New(testConfig(), f.registry, f.monitor, WithMirror(m))

		rec := do(t, s.Handler(), "/api/mirror")
		require.Equal(t, http.StatusOK, rec.Code)

		var got registry.MirroredSnapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "snap-1", got.ID)
		assert.Equal(t, 3, got.Total)
		assert.Equal(t, []string{"foo", "bar"}, got.Names["repository"])
	})
}

func TestMiddlewareChain(t *testing.T) {
	f := newFixture(t, true)

	var called bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.Header().Set("X-Test", "1")
			next.ServeHTTP(w, r)
		})
	}
	s := New(testConfig(), f.registry, f.monitor, WithMiddlewares(mw))

	rec := do(t, s.Handler(), "/health")
	assert.True(t, called)
	assert.Equal(t, "1", rec.Header().Get("X-Test"))
	assert.NotEmpty(t, rec.Header().Get(core.RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, true)
	cfg := testConfig()
	cfg.HTTP.CORS = core.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://app.example.com"},
		AllowedMethods: []string{"GET"},
	}
	s := New(cfg, f.registry, f.monitor)

	req := httptest.NewRequest(http.MethodOptions, "/api/registry", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartAndShutdown(t *testing.T) {
	f := newFixture(t, true)
	s := New(testConfig(), f.registry, f.monitor)
	assert.Empty(t, s.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	var checks []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&checks))
	_ = resp.Body.Close()
	assert.Equal(t, []string{"FooRepository", "BarRepository"}, checks)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	err = s.Start(context.Background())
	assert.True(t, errors.Is(err, core.ErrAlreadyStarted))
}

func TestStartFailsOnBusyPort(t *testing.T) {
	f := newFixture(t, true)

	first := New(testConfig(), f.registry, f.monitor)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = first.Start(ctx) }()
	require.Eventually(t, func() bool { return first.Addr() != "" }, 2*time.Second, 10*time.Millisecond)

	_, portStr, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Port = port
	second := New(cfg, f.registry, f.monitor)
	err = second.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrConnectionFailed)
}
