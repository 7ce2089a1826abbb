// Package app wires a kindreg process together in a fixed order:
// construct components, populate the registry, initialise consumers, serve.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/itsneelabh/kindreg/container"
	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/events"
	"github.com/itsneelabh/kindreg/internal/components"
	"github.com/itsneelabh/kindreg/kind"
	"github.com/itsneelabh/kindreg/monitor"
	"github.com/itsneelabh/kindreg/registry"
	"github.com/itsneelabh/kindreg/server"
	"github.com/itsneelabh/kindreg/telemetry"
)

// ProvideFunc registers constructors with the container.
type ProvideFunc func(c *container.Container) error

// App is a bootstrapped process.
type App struct {
	Config     *core.Config
	Logger     core.Logger
	Telemetry  *telemetry.Provider
	Container  *container.Container
	Registry   *registry.Registry
	Monitor    *monitor.Monitor
	Server     *server.Server
	Mirror     *registry.RedisMirror
	Discovered *events.Broker[registry.DiscoveryEvent]
	Populated  *events.Broker[registry.Snapshot]

	redis *redis.Client
}

type options struct {
	table        *kind.TypeTable
	logger       core.Logger
	provide      ProvideFunc
	telemetry    []telemetry.Option
	redisOptions func(*core.RedisOptions)
	subscribe    func(a *App)
}

// Option customizes Bootstrap.
type Option func(*options)

// WithTable sets the type table. Defaults to kind.Default.
func WithTable(table *kind.TypeTable) Option {
	return func(o *options) { o.table = table }
}

// WithLogger replaces the logger built from the config.
func WithLogger(logger core.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithProviders replaces the stock component providers.
func WithProviders(fn ProvideFunc) Option {
	return func(o *options) { o.provide = fn }
}

// WithTelemetryOptions passes options to telemetry.Setup.
func WithTelemetryOptions(opts ...telemetry.Option) Option {
	return func(o *options) { o.telemetry = append(o.telemetry, opts...) }
}

// WithRedisOptions adjusts the Redis dial options used for the mirror.
func WithRedisOptions(fn func(*core.RedisOptions)) Option {
	return func(o *options) { o.redisOptions = fn }
}

// WithSubscriber is called with the App after the brokers exist and before
// population, so the callback can subscribe to discovery events.
func WithSubscriber(fn func(a *App)) Option {
	return func(o *options) { o.subscribe = fn }
}

// Bootstrap validates cfg and runs the startup sequence up to, but not
// including, serving. On error everything already started is released.
func Bootstrap(ctx context.Context, cfg *core.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{table: kind.Default, provide: components.Provide}
	for _, opt := range opts {
		opt(o)
	}
	if o.table == nil {
		o.table = kind.Default
	}

	logger := o.logger
	if logger == nil {
		logger = core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)
	}
	o.table.SetLogger(logger)

	a := &App{
		Config:     cfg,
		Logger:     core.ComponentLogger(logger, "kindreg/app"),
		Discovered: events.NewBroker[registry.DiscoveryEvent](),
		Populated:  events.NewBroker[registry.Snapshot](),
	}

	tel, err := telemetry.Setup(ctx, cfg.Telemetry, logger, o.telemetry...)
	if err != nil {
		a.release(ctx)
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	a.Telemetry = tel

	a.Container = container.New(o.table, container.WithLogger(logger))
	if err := o.provide(a.Container); err != nil {
		a.release(ctx)
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}
	if err := a.Container.Build(ctx); err != nil {
		a.release(ctx)
		return nil, err
	}

	metrics, err := registry.NewMetricsSink(tel.Meter())
	if err != nil {
		a.release(ctx)
		return nil, fmt.Errorf("failed to create registry metrics: %w", err)
	}

	regOpts := []registry.Option{
		registry.WithLogger(logger),
		registry.WithTracer(tel.Tracer()),
		registry.WithEventSink(registry.NewLogSink(logger)),
		registry.WithEventSink(registry.NewBrokerSink(a.Discovered, a.Populated)),
		registry.WithEventSink(metrics),
	}

	if cfg.Mirror.Enabled {
		redisOpts := core.RedisOptions{
			URL:     cfg.Mirror.RedisURL,
			Timeout: cfg.Mirror.Timeout,
			Logger:  core.ComponentLogger(logger, "kindreg/redis"),
		}
		if o.redisOptions != nil {
			o.redisOptions(&redisOpts)
		}
		client, err := core.DialRedis(ctx, redisOpts)
		if err != nil {
			a.release(ctx)
			return nil, fmt.Errorf("failed to connect registry mirror: %w", err)
		}
		a.redis = client
		a.Mirror = registry.NewRedisMirror(client, cfg.Mirror.Namespace,
			registry.WithMirrorLogger(logger),
			registry.WithMirrorTimeout(cfg.Mirror.Timeout),
		)
		regOpts = append(regOpts, registry.WithEventSink(a.Mirror))
	}

	if o.subscribe != nil {
		o.subscribe(a)
	}

	a.Registry = registry.New(o.table, regOpts...)
	a.Registry.Populate(ctx, a.Container.Entries())

	a.Monitor = monitor.New(kind.Tag(cfg.Monitor.Tag), monitor.WithLogger(logger))
	a.Monitor.Init(a.Registry)

	srvOpts := []server.Option{server.WithLogger(logger)}
	if a.Mirror != nil {
		srvOpts = append(srvOpts, server.WithMirror(a.Mirror))
	}
	a.Server = server.New(cfg, a.Registry, a.Monitor, srvOpts...)

	a.Logger.Info("Bootstrap complete", map[string]interface{}{
		"components":  a.Registry.Count(""),
		"tags":        len(a.Registry.Tags()),
		"monitor_tag": cfg.Monitor.Tag,
		"monitored":   a.Monitor.Size(),
		"mirror":      a.Mirror != nil,
		"telemetry":   tel.Enabled(),
	})
	return a, nil
}

// Run serves HTTP until ctx is done and then releases resources.
func (a *App) Run(ctx context.Context) error {
	serveErr := a.Server.Start(ctx)
	closeErr := a.Close(context.Background())
	return errors.Join(serveErr, closeErr)
}

// Close releases the brokers, the Redis connection and telemetry.
func (a *App) Close(ctx context.Context) error {
	return a.release(ctx)
}

func (a *App) release(ctx context.Context) error {
	a.Discovered.Close()
	a.Populated.Close()

	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		a.redis = nil
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.Telemetry = nil
	}
	return errors.Join(errs...)
}
