package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"study-notes-platform/internal/ai"
	"study-notes-platform/internal/bootstrap"
	"study-notes-platform/internal/config"
	"study-notes-platform/internal/jobs"
	"study-notes-platform/internal/logger"
	"study-notes-platform/internal/queue"
	"study-notes-platform/internal/scraper"
	"study-notes-platform/internal/telemetry"
	"study-notes-platform/middleware"
	"study-notes-platform/routes"
	"study-notes-platform/services"
)

const (
	serviceName     = "study-notes-api"
	brokerCapacity  = 256
	poolBackoff     = 2 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(serviceName, cfg.OTelEndpoint, cfg.TraceSampleRatio)
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Open(ctx, cfg, metrics)
	if err != nil {
		logger.Error("Failed to open backends", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.Error("Failed to close backends", "error", err)
		}
	}()

	gemini, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier, metrics)
	if err != nil {
		logger.Error("Failed to initialize Gemini client", "error", err)
		os.Exit(1)
	}
	defer gemini.Close()

	jobStore, err := deps.JobStore()
	if err != nil {
		logger.Error("Failed to create job store", "error", err)
		os.Exit(1)
	}

	var publisher jobs.Publisher
	var pool *jobs.Pool
	switch cfg.QueueBackend {
	case "memory":
		broker := jobs.NewMemoryBroker(brokerCapacity)
		defer broker.Close()
		pool = jobs.NewPool(broker.Tasks(), deps.NewIngestor(jobStore).Handle, jobs.PoolOptions{
			Workers:  cfg.WorkerConcurrency,
			MaxRetry: cfg.JobMaxRetry,
			Backoff:  poolBackoff,
		})
		pool.Start(ctx)
		publisher = broker
		logger.Info("Ingestion runs in-process", "workers", cfg.WorkerConcurrency)
	default:
		connOpt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			logger.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		client := asynq.NewClient(connOpt)
		defer client.Close()
		publisher = queue.NewAsynqPublisher(client, cfg)
	}

	generation := services.NewGenerationService(gemini, deps.Indexes, deps.Embedder, cfg.GenerationTimeout, metrics)
	pipeline := services.NewPipeline(services.PipelineDeps{
		Blobs:      deps.Blobs,
		Jobs:       jobStore,
		Publisher:  publisher,
		Docs:       deps.Docs,
		Indexes:    deps.Indexes,
		Generation: generation,
		Fetcher:    scraper.New(scraper.Options{Timeout: cfg.ScrapeTimeout, RenderJS: cfg.ScrapeRenderJS}),
		Metrics:    metrics,
	})

	deps.Janitor.Start()

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TracingMiddleware(serviceName))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})
	routes.SetupDocumentRoutes(router, cfg, pipeline)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "queue", cfg.QueueBackend, "blobs", cfg.BlobBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if pool != nil {
		pool.Wait()
	}
	logger.Info("Server exited")
}
