// Package relay tracks live client connections and forwards their bus
// messages to them. The connection itself (a websocket in practice) is an
// external collaborator behind the Conn interface.
package relay

import (
	"context"
	"sync"

	"account-platform/backend/internal/bus"
)

// Conn is one client's outbound channel.
type Conn interface {
	Send(payload []byte) error
}

// Registry owns the clientID → connection map and the per-client relay loops.
// All methods are safe for concurrent use.
type Registry struct {
	bus bus.Bus

	mu      sync.Mutex
	conns   map[string]Conn
	cancels map[string]context.CancelFunc
}

// NewRegistry returns an empty Registry relaying from b.
func NewRegistry(b bus.Bus) *Registry {
	return &Registry{
		bus:     b,
		conns:   make(map[string]Conn),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Register binds conn to clientID. Registering an already-registered client
// replaces the previous connection; messages from then on go to the new one.
func (r *Registry) Register(clientID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[clientID] = conn
}

// Unregister removes the client and stops its relay loop. Unknown clients are
// a no-op.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, clientID)
	if cancel, ok := r.cancels[clientID]; ok {
		cancel()
		delete(r.cancels, clientID)
	}
}

// Send delivers payload to the client's connection. Returns false when the
// client is not registered or the write fails; an absent client is expected
// churn, not an error.
func (r *Registry) Send(clientID string, payload []byte) bool {
	r.mu.Lock()
	conn, ok := r.conns[clientID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	return conn.Send(payload) == nil
}

// Broadcast sends payload to every registered client, best effort. A failed
// write to one connection does not stop delivery to the rest.
func (r *Registry) Broadcast(payload []byte) {
	r.mu.Lock()
	conns := make(map[string]Conn, len(r.conns))
	for id, c := range r.conns {
		conns[id] = c
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Send(payload)
	}
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// StartRelay subscribes to the client's topic and forwards every message to
// its connection until Unregister is called or ctx is canceled. The
// subscription is established before StartRelay returns, so messages
// published afterwards are not lost. The forwarding itself runs in a
// background goroutine; the subscription is released on every exit path.
func (r *Registry) StartRelay(ctx context.Context, clientID string) error {
	sub, err := r.bus.Subscribe(ctx, bus.ClientTopic(clientID))
	if err != nil {
		return err
	}

	relayCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	if prev, ok := r.cancels[clientID]; ok {
		prev()
	}
	r.cancels[clientID] = cancel
	r.mu.Unlock()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-relayCtx.Done():
				return
			case msg, ok := <-sub.Messages():
				if !ok {
					return
				}
				r.Send(clientID, msg.Payload)
			}
		}
	}()
	return nil
}
