package interceptors

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"account-platform/backend/internal/telemetry"
)

// grpcRequestMetadata is the JSON shape stored in Event.Metadata for grpc_request events.
type grpcRequestMetadata struct {
	FullMethod string `json:"full_method"`
	StatusCode string `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// TelemetryUnary returns a unary server interceptor that emits an account
// event after each RPC. Best-effort: emission never fails the RPC. If emitter
// is nil, the interceptor no-ops. skipMethods is the set of full method names
// to not emit (e.g. health checks).
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		meta := grpcRequestMetadata{
			FullMethod: info.FullMethod,
			StatusCode: status.Code(err).String(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		}
		metaJSON, _ := json.Marshal(meta)
		username, _ := GetUsername(ctx)
		telemetry.EmitAsync(emitter, ctx, &telemetry.Event{
			EventType: "grpc_request",
			Username:  username,
			Source:    "grpc_interceptor",
			Metadata:  metaJSON,
			CreatedAt: time.Now().UTC(),
		})
		return resp, err
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
