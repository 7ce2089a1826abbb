package registry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsSink counts discovered components per tag and records the size
// of each population.
type MetricsSink struct {
	discovered metric.Int64Counter
	components metric.Int64Gauge
}

// NewMetricsSink registers its instruments on meter.
func NewMetricsSink(meter metric.Meter) (*MetricsSink, error) {
	discovered, err := meter.Int64Counter("kindreg.components.discovered",
		metric.WithDescription("Tagged components found during registry population"),
		metric.WithUnit("{component}"))
	if err != nil {
		return nil, err
	}
	components, err := meter.Int64Gauge("kindreg.registry.components",
		metric.WithDescription("Tagged components in the current registry index"),
		metric.WithUnit("{component}"))
	if err != nil {
		return nil, err
	}
	return &MetricsSink{discovered: discovered, components: components}, nil
}

func (s *MetricsSink) Discovered(ctx context.Context, ev DiscoveryEvent) {
	s.discovered.Add(ctx, 1, metric.WithAttributes(attribute.String("tag", ev.Type.String())))
}

func (s *MetricsSink) Populated(ctx context.Context, snap Snapshot) {
	s.components.Record(ctx, int64(snap.Total))
}
