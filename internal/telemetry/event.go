// Package telemetry defines best-effort account event emission. Events record
// security-relevant moments (registration, login, refresh, OAuth callbacks,
// role changes) without ever blocking or failing the operation itself.
package telemetry

import (
	"context"
	"log"
	"time"
)

// Event is one account event.
type Event struct {
	EventType string // e.g. "user.register", "auth.login", "auth.refresh"
	Username  string
	Provider  string // set for OAuth events
	Source    string // emitting component, e.g. "grpc", "worker"
	Metadata  []byte // optional JSON payload
	CreatedAt time.Time
}

// EventEmitter emits account events (e.g. to OTel Logs). Best-effort; callers
// log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after gRPC GracefulStop before shutting down OTel providers,
// so in-flight async emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// emitter and event may be nil; EmitAsync returns immediately then. The goroutine uses
// context.Background() so request cancellation does not abort an in-flight emit.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *Event) {
	if emitter == nil || event == nil {
		return
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}
