package registry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/itsneelabh/kindreg/core"
	"github.com/itsneelabh/kindreg/kind"
)

// RedisMirror copies each populated index to Redis so that other
// processes and operators can inspect what a running instance discovered.
//
// Key layout under namespace ns:
//
//	ns:tags          list of tags in first-discovered order
//	ns:tags:<tag>    list of component names in discovery order
//	ns:snapshot      hash {id, total, populated_at}
//
// The mirror is write-behind: failures are logged and never reach the
// registry.
type RedisMirror struct {
	client    *redis.Client
	namespace string
	timeout   time.Duration
	logger    core.Logger
}

// MirrorOption configures a RedisMirror.
type MirrorOption func(*RedisMirror)

// WithMirrorLogger sets the mirror logger.
func WithMirrorLogger(logger core.Logger) MirrorOption {
	return func(m *RedisMirror) {
		m.logger = core.ComponentLogger(logger, "kindreg/mirror")
	}
}

// WithMirrorTimeout bounds each write to Redis.
func WithMirrorTimeout(d time.Duration) MirrorOption {
	return func(m *RedisMirror) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// NewRedisMirror creates a mirror writing through client.
func NewRedisMirror(client *redis.Client, namespace string, opts ...MirrorOption) *RedisMirror {
	if namespace == "" {
		namespace = "kindreg"
	}
	m := &RedisMirror{
		client:    client,
		namespace: namespace,
		timeout:   5 * time.Second,
		logger:    &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Discovered is a no-op; the mirror writes whole snapshots.
func (m *RedisMirror) Discovered(context.Context, DiscoveryEvent) {}

// Populated writes snap to Redis and logs the outcome.
func (m *RedisMirror) Populated(ctx context.Context, snap Snapshot) {
	id, err := m.Write(ctx, snap)
	if err != nil {
		m.logger.Error("Failed to mirror registry snapshot", map[string]interface{}{
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"namespace":  m.namespace,
		})
		return
	}
	m.logger.Info("Registry snapshot mirrored", map[string]interface{}{
		"snapshot_id": id,
		"namespace":   m.namespace,
		"tags":        len(snap.Tags),
		"total":       snap.Total,
	})
}

// Write replaces the mirrored index with snap in a single transaction and
// returns the new snapshot ID.
func (m *RedisMirror) Write(ctx context.Context, snap Snapshot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	previous, err := m.client.LRange(ctx, m.tagsKey(), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return "", fmt.Errorf("failed to read mirrored tags: %v: %w", err, core.ErrConnectionFailed)
	}

	id := uuid.NewString()
	pipe := m.client.TxPipeline()

	stale := make([]string, 0, len(previous)+1)
	stale = append(stale, m.tagsKey())
	for _, tag := range previous {
		stale = append(stale, m.tagKey(kind.Tag(tag)))
	}
	pipe.Del(ctx, stale...)

	if len(snap.Tags) > 0 {
		tags := make([]interface{}, len(snap.Tags))
		for i, tag := range snap.Tags {
			tags[i] = tag.String()
		}
		pipe.RPush(ctx, m.tagsKey(), tags...)
	}
	for _, tag := range snap.Tags {
		names := snap.Names[tag]
		if len(names) == 0 {
			continue
		}
		values := make([]interface{}, len(names))
		for i, name := range names {
			values[i] = name
		}
		pipe.RPush(ctx, m.tagKey(tag), values...)
	}

	pipe.HSet(ctx, m.snapshotKey(), map[string]interface{}{
		"id":           id,
		"total":        snap.Total,
		"populated_at": snap.PopulatedAt.UTC().Format(time.RFC3339Nano),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to write registry snapshot: %v: %w", err, core.ErrConnectionFailed)
	}
	return id, nil
}

// MirroredSnapshot is a snapshot read back from Redis.
type MirroredSnapshot struct {
	ID string `json:"id"`
	Snapshot
}

// Load reads the mirrored snapshot. It returns core.ErrNotInitialized when
// nothing has been mirrored under the namespace yet.
func (m *RedisMirror) Load(ctx context.Context) (*MirroredSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	meta, err := m.client.HGetAll(ctx, m.snapshotKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot metadata: %v: %w", err, core.ErrConnectionFailed)
	}
	if len(meta) == 0 {
		return nil, &core.FrameworkError{
			Op:      "RedisMirror.Load",
			Kind:    "mirror",
			ID:      m.namespace,
			Message: "no snapshot mirrored",
			Err:     core.ErrNotInitialized,
		}
	}

	out := &MirroredSnapshot{
		ID: meta["id"],
		Snapshot: Snapshot{
			Names: make(map[kind.Tag][]string),
		},
	}
	out.Total, _ = strconv.Atoi(meta["total"])
	if ts, err := time.Parse(time.RFC3339Nano, meta["populated_at"]); err == nil {
		out.PopulatedAt = ts
	}

	tags, err := m.client.LRange(ctx, m.tagsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read mirrored tags: %v: %w", err, core.ErrConnectionFailed)
	}
	for _, t := range tags {
		tag := kind.Tag(t)
		names, err := m.client.LRange(ctx, m.tagKey(tag), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read mirrored names for %s: %v: %w", t, err, core.ErrConnectionFailed)
		}
		out.Tags = append(out.Tags, tag)
		out.Names[tag] = names
	}
	return out, nil
}

func (m *RedisMirror) tagsKey() string { return m.namespace + ":tags" }
func (m *RedisMirror) tagKey(tag kind.Tag) string { return m.namespace + ":tags:" + tag.String() }
func (m *RedisMirror) snapshotKey() string { return m.namespace + ":snapshot" }
