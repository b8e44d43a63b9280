// Worker consumes queued tasks from Redis and publishes progress to each
// client's ws:{client_id} channel. Set REDIS_URL, JOB_QUEUE_NAME, and
// WORKER_CONCURRENCY. GRPC_ADDR is read by config but unused here.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"account-platform/backend/internal/bus"
	"account-platform/backend/internal/config"
	"account-platform/backend/internal/db"
	"account-platform/backend/internal/jobs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	rdb, err := db.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("worker: redis: %v", err)
	}
	defer rdb.Close()

	worker := jobs.NewWorker(rdb, bus.NewRedisBus(rdb), cfg.JobQueueName, cfg.WorkerConcurrency, time.Second)

	log.Printf("worker: consuming from %s (concurrency %d)", cfg.JobQueueName, cfg.WorkerConcurrency)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("worker: %v", err)
	}
	log.Println("worker: stopped")
}
