package main

import (
	"context"
	"log"
	"os"
	"time"

	"study-notes-platform/internal/bootstrap"
	"study-notes-platform/internal/config"
	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/queue"
	"study-notes-platform/internal/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.QueueBackend != "asynq" {
		logger.Error("The worker consumes the asynq queue; with QUEUE_BACKEND=memory the API server ingests in-process")
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracer("study-notes-worker", cfg.OTelEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		logger.Error("Failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	deps, err := bootstrap.Open(context.Background(), cfg, metrics)
	if err != nil {
		logger.Error("Failed to open backends", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		deps.Close(ctx)
	}()

	jobStore, err := deps.JobStore()
	if err != nil {
		logger.Error("Failed to create job store", "error", err)
		os.Exit(1)
	}

	server, err := queue.NewServer(cfg)
	if err != nil {
		logger.Error("Failed to create worker", "error", err)
		os.Exit(1)
	}
	processor := queue.NewTaskProcessor(deps.NewIngestor(jobStore).Handle)

	deps.Janitor.Start()
	logger.Info("Starting ingestion worker",
		"concurrency", cfg.WorkerConcurrency,
		"queue", queue.QueueIngest,
		"max_retry", cfg.JobMaxRetry,
	)

	// Run blocks until SIGTERM or SIGINT and drains in-flight tasks.
	if err := server.Run(queue.NewMux(processor)); err != nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
}
