package registry

import (
	"context"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/events"
	"github.com/itsneelabh/kindreg/kind"
)

// EventDiscovered is the event name carried by structured discovery records.
const EventDiscovered = "DISCOVERED"

// DiscoveryEvent records that a tagged component was found during
// population.
type DiscoveryEvent struct {
	Type kind.Tag `json:"type"`
	Name string   `json:"name"`
}

// Fields returns the structured form {event, type, name}.
func (e DiscoveryEvent) Fields() map[string]interface{} {
	return map[string]interface{}{
		"event": EventDiscovered,
		"type":  e.Type.String(),
		"name":  e.Name,
	}
}

// EventSink receives discovery events. Sinks must not block for long and
// cannot fail the population.
type EventSink interface {
	Discovered(ctx context.Context, ev DiscoveryEvent)
}

// PopulateObserver is implemented by sinks that also want the finished
// index once per population.
type PopulateObserver interface {
	Populated(ctx context.Context, snap Snapshot)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, ev DiscoveryEvent)

func (f SinkFunc) Discovered(ctx context.Context, ev DiscoveryEvent) { f(ctx, ev) }

// LogSink writes one structured info record per discovery event.
type LogSink struct {
	logger core.Logger
}

// NewLogSink creates a sink logging through logger.
func NewLogSink(logger core.Logger) *LogSink {
	return &LogSink{logger: core.ComponentLogger(logger, "kindreg/registry")}
}

func (s *LogSink) Discovered(_ context.Context, ev DiscoveryEvent) {
	s.logger.Info("Component discovered", ev.Fields())
}

// BrokerSink republishes discovery events on an in-process broker.
type BrokerSink struct {
	discovered events.Publisher[DiscoveryEvent]
	populated  events.Publisher[Snapshot]
}

// NewBrokerSink creates a sink publishing to the given brokers. Either may
// be nil.
func NewBrokerSink(discovered events.Publisher[DiscoveryEvent], populated events.Publisher[Snapshot]) *BrokerSink {
	return &BrokerSink{discovered: discovered, populated: populated}
}

func (s *BrokerSink) Discovered(_ context.Context, ev DiscoveryEvent) {
	if s.discovered != nil {
		s.discovered.Publish(events.Discovered, ev)
	}
}

func (s *BrokerSink) Populated(_ context.Context, snap Snapshot) {
	if s.populated != nil {
		s.populated.Publish(events.Populated, snap)
	}
}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Discovered(ctx context.Context, ev DiscoveryEvent) {
	for _, s := range m {
		if s != nil {
			s.Discovered(ctx, ev)
		}
	}
}

func (m MultiSink) Populated(ctx context.Context, snap Snapshot) {
	for _, s := range m {
		if obs, ok := s.(PopulateObserver); ok {
			obs.Populated(ctx, snap)
		}
	}
}
