package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"price-tracker/config"
	"price-tracker/internal/api"
	"price-tracker/internal/broker"
	"price-tracker/internal/orchestrator"
	"price-tracker/internal/redisclient"
	"price-tracker/internal/registry"
	"price-tracker/internal/schedule"
	"price-tracker/internal/scraper"
	"price-tracker/internal/service"
	"price-tracker/internal/store"
	"price-tracker/internal/util"
	"price-tracker/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting price tracker")

	tp, err := util.InitTracer("price-tracker", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// An inconsistent registry is fatal: the scheduler must not run
	// against markets that do not exist.
	reg, err := registry.New(cfg.Scheduler.MarketsFile, cfg.Scheduler.CitiesFile, cfg.Scheduler.PrioritizeByPop)
	if err != nil {
		log.Fatalf("Failed to load market registry: %v", err)
	}
	log.Printf("Registry loaded: %d markets, %d cities", len(reg.Markets()), len(reg.Cities()))

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	slots, err := schedule.NewSlotScheduler(
		reg.Markets(),
		time.Duration(cfg.Scheduler.MinSlotGapMinutes)*time.Minute,
		time.Weekday(cfg.Scheduler.FullSweepWeekday),
		cfg.Scheduler.FullSweepTime,
		redisClient,
	)
	if err != nil {
		log.Fatalf("Failed to build slot schedule: %v", err)
	}

	rotation := schedule.NewRotation(reg.Cities(), cfg.Scheduler.RotationBucketCount)

	auditPipeline := service.NewAuditPipeline(db, eventPublisher)
	catalogService := service.NewCatalogService(db)

	scrapers := scraper.NewRegistry()
	registerScrapers(scrapers, reg)

	orch := orchestrator.New(reg, rotation, slots, redisClient, scrapers, auditPipeline, eventPublisher, orchestrator.Config{
		WorkerPoolCeiling: cfg.Scheduler.WorkerPoolCeiling,
		RetryBudget:       cfg.Scheduler.RetryBudget,
		BackoffBase:       time.Duration(cfg.Scheduler.BackoffBaseSeconds) * time.Second,
		JobTimeout:        time.Duration(cfg.Scheduler.JobTimeoutSeconds) * time.Second,
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	scheduleWorker := worker.NewScheduleWorker(orch, time.Duration(cfg.Scheduler.TickSeconds)*time.Second)
	go func() {
		if err := scheduleWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Schedule worker error: %v", err)
		}
	}()

	failureConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents, cfg.Kafka.ConsumerGroup)
	reportWorker := worker.NewReportWorker(failureConsumer, db)
	go func() {
		if err := reportWorker.Start(workerCtx); err != nil && err != context.Canceled {
			log.Printf("Report worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(catalogService, db, orch)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	scheduleWorker.Stop()
	reportWorker.Stop()

	log.Println("Server exited")
}
