package relay

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const presenceKey = "ws:active_connections"

// Presence mirrors the set of connected client ids into Redis so other
// processes (workers, other server replicas) can see who is online. The
// in-process Registry remains the source of truth for actual delivery.
type Presence struct {
	rdb *redis.Client
}

// NewPresence returns a Presence over the given Redis client.
func NewPresence(rdb *redis.Client) *Presence {
	return &Presence{rdb: rdb}
}

// Add records the client as connected.
func (p *Presence) Add(ctx context.Context, clientID string) error {
	return p.rdb.SAdd(ctx, presenceKey, clientID).Err()
}

// Remove records the client as disconnected. Removing an absent client is a
// no-op.
func (p *Presence) Remove(ctx context.Context, clientID string) error {
	return p.rdb.SRem(ctx, presenceKey, clientID).Err()
}

// Active returns the ids of currently connected clients.
func (p *Presence) Active(ctx context.Context) ([]string, error) {
	return p.rdb.SMembers(ctx, presenceKey).Result()
}
