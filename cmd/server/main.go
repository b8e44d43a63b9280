package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"account-platform/backend/internal/config"
	"account-platform/backend/internal/db"
	"account-platform/backend/internal/security"
	"account-platform/backend/internal/server"
	"account-platform/backend/internal/telemetry"
	"account-platform/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "account-platform")
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	emitter := otel.NewEventEmitter(providers.LoggerProvider)

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	rdb, err := db.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	tokens := security.NewTokenProvider(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())

	s, healthSrv := server.New(server.Deps{
		Tokens:  tokens,
		Emitter: emitter,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	go func() {
		log.Printf("gRPC server listening on %s", cfg.GRPCAddr)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	// Stores were reachable at startup; advertise readiness.
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.GracefulStop()

	// Give in-flight event emissions a chance to land before the exporters go.
	time.Sleep(telemetry.ShutdownDrainDuration)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("gRPC server stopped")
}
