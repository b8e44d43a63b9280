// Package server builds the gRPC server: interceptor chain, health service,
// and OpenTelemetry instrumentation.
package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"

	"account-platform/backend/internal/security"
	"account-platform/backend/internal/server/interceptors"
	"account-platform/backend/internal/telemetry"
)

// healthMethodPrefix covers the standard grpc.health.v1 service; health RPCs
// are public and not emitted as events.
const healthMethodPrefix = "/grpc.health.v1.Health/"

// Deps holds the cross-cutting dependencies for the gRPC server.
type Deps struct {
	// Tokens verifies Bearer access tokens for protected RPCs.
	Tokens *security.TokenProvider
	// PublicMethods is the set of full method names callable without a token
	// (Register, Login, Refresh, the OAuth endpoints). Health methods are
	// always public.
	PublicMethods map[string]bool
	// Emitter receives a grpc_request event per RPC. May be nil.
	Emitter telemetry.EventEmitter
}

// New constructs the gRPC server with the auth and telemetry interceptors and
// the standard health service registered. The returned health server starts in
// NOT_SERVING; flip it once the backing stores are reachable.
func New(deps Deps) (*grpc.Server, *health.Server) {
	public := map[string]bool{
		healthMethodPrefix + "Check": true,
		healthMethodPrefix + "Watch": true,
	}
	for m := range deps.PublicMethods {
		public[m] = true
	}
	skipEvents := map[string]bool{
		healthMethodPrefix + "Check": true,
		healthMethodPrefix + "Watch": true,
	}

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(deps.Tokens, public),
			interceptors.TelemetryUnary(deps.Emitter, skipEvents),
		),
	)

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, healthSrv)
	return s, healthSrv
}
