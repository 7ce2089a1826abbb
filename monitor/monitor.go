// Package monitor aggregates the health of every component carrying a
// given tag.
//
// A Monitor is initialised once, after the registry has been populated,
// and from then on answers Check from its cached component list:
//
//	m := monitor.New("repository", monitor.WithLogger(logger))
//	m.Init(reg)
//	statuses := m.Check() // ["FooRepository", "BarRepository"]
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/kind"
	"github.com/itsneelabh/kindreg/registry"
)

// HealthChecker is implemented by components that can report their status.
type HealthChecker interface {
	HealthCheck() string
}

// State is the monitor lifecycle state.
type State int32

const (
	// Uninitialized monitors hold no components and report an empty check.
	Uninitialized State = iota
	// Ready monitors have cached their components. Ready is terminal.
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Monitor caches the components of one tag and checks them on demand.
type Monitor struct {
	tag    kind.Tag
	logger core.Logger

	initOnce   sync.Once
	state      atomic.Int32
	components atomic.Pointer[[]HealthChecker]
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor logger.
func WithLogger(logger core.Logger) Option {
	return func(m *Monitor) {
		m.logger = core.ComponentLogger(logger, "kindreg/monitor")
	}
}

// New creates an uninitialised monitor for tag.
func New(tag kind.Tag, opts ...Option) *Monitor {
	m := &Monitor{
		tag:    tag,
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	empty := []HealthChecker{}
	m.components.Store(&empty)
	return m
}

// Init caches the health-checkable components carrying the monitor's tag.
// It must run after the registry is populated. Only the first call has an
// effect; later calls are logged and ignored.
func (m *Monitor) Init(r *registry.Registry) {
	if r == nil {
		m.logger.Error("Monitor Init called without a registry", map[string]interface{}{
			"tag": m.tag.String(),
		})
		return
	}

	first := false
	m.initOnce.Do(func() {
		first = true

		if !r.Populated() {
			m.logger.Warn("Monitor initialised before registry population", map[string]interface{}{
				"tag": m.tag.String(),
			})
		}

		checkers := registry.ByTag[HealthChecker](r, m.tag)
		m.components.Store(&checkers)
		m.state.Store(int32(Ready))

		m.logger.Info("Monitor ready", map[string]interface{}{
			"tag":        m.tag.String(),
			"components": len(checkers),
		})
	})

	if !first {
		m.logger.Warn("Monitor already initialised, ignoring repeated Init", map[string]interface{}{
			"tag": m.tag.String(),
		})
	}
}

// Check calls HealthCheck on every cached component in order. The result
// is never nil.
func (m *Monitor) Check() []string {
	components := *m.components.Load()
	out := make([]string, 0, len(components))
	for _, c := range components {
		out = append(out, c.HealthCheck())
	}
	return out
}

// State returns the lifecycle state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Tag returns the tag the monitor aggregates.
func (m *Monitor) Tag() kind.Tag {
	return m.tag
}

// Size returns the number of cached components.
func (m *Monitor) Size() int {
	return len(*m.components.Load())
}

// Report is the JSON health report served over HTTP.
type Report struct {
	ID          string            `json:"id"`
	Tag         kind.Tag          `json:"tag"`
	Status      core.HealthStatus `json:"status"`
	State       string            `json:"state"`
	Checks      []string          `json:"checks"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Report runs Check and wraps the result with metadata. Status is healthy
// once the monitor is ready and unknown before that.
func (m *Monitor) Report(ctx context.Context) Report {
	status := core.HealthUnknown
	if m.State() == Ready {
		status = core.HealthHealthy
	}
	rep := Report{
		ID:          uuid.NewString(),
		Tag:         m.tag,
		Status:      status,
		State:       m.State().String(),
		Checks:      m.Check(),
		GeneratedAt: time.Now().UTC(),
	}
	if ctx.Err() != nil {
		rep.Status = core.HealthUnknown
	}
	return rep
}
