package dashboard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/pipeline-metrics/backend/pkg/redis"
)

// mirrorName is the Redis entry holding the shared dashboard
const mirrorName = "dashboard"

// Mirror shares the newest published result between API processes
type Mirror interface {
	Publish(ctx context.Context, p *Published) (bool, error)
	Latest(ctx context.Context) (*Published, bool, error)
}

// RedisMirror stores the dashboard in Redis, ordered by submission time.
// A process that finishes late cannot replace a newer result written by
// another process.
type RedisMirror struct {
	store *redis.SequencedStore
}

// NewRedisMirror creates a mirror on client
func NewRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	return &RedisMirror{store: redis.NewSequencedStore(client, prefix, redis.TTLDashboard)}
}

// Publish writes p if it was submitted after the stored result
func (m *RedisMirror) Publish(ctx context.Context, p *Published) (bool, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("failed to marshal dashboard: %w", err)
	}
	return m.store.PublishIfNewer(ctx, mirrorName, p.SubmittedAt.UnixNano(), payload)
}

// Latest reads the shared dashboard
func (m *RedisMirror) Latest(ctx context.Context) (*Published, bool, error) {
	_, payload, found, err := m.store.Latest(ctx, mirrorName)
	if err != nil || !found {
		return nil, false, err
	}

	var p Published
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal dashboard: %w", err)
	}
	return &p, true, nil
}
