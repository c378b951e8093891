package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendor-service/config"
	"vendor-service/internal/api"
	"vendor-service/internal/broker"
	"vendor-service/internal/live"
	"vendor-service/internal/redisclient"
	"vendor-service/internal/service"
	"vendor-service/internal/store"
	"vendor-service/internal/util"
	"vendor-service/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Observ.ServiceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting vendor service")

	tp, err := util.InitTracer(cfg.Observ.ServiceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSupplierEvents)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.String("topic", cfg.Kafka.TopicSupplierEvents))

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := live.NewHub(cfg.CORS.AllowedOrigins)
	go hub.Run(hubCtx)

	eventPublisher := broker.NewEventPublisher(producer, hub)

	supplierService := service.NewSupplierService(db, redisClient, eventPublisher, service.Options{
		LockTTL:        cfg.Business.LockTTL(),
		ScorecardTTL:   cfg.Business.ScorecardTTL(),
		DashboardTTL:   cfg.Business.DashboardTTL(),
		IdempotencyTTL: cfg.Business.IdempotencyTTL(),
	})

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	receiptConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicDeliveryReceipts, cfg.Kafka.ConsumerGroup)
	deliveryWorker := worker.NewDeliveryWorker(receiptConsumer, supplierService)
	go func() {
		if err := deliveryWorker.Start(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Delivery worker error", zap.Error(err))
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(supplierService, hub, map[string]api.ReadinessCheck{
		"postgres": db.Ping,
		"redis":    redisClient.Ping,
	})
	handler.SetupRoutes(router, cfg.CORS.AllowedOrigins)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if err := deliveryWorker.Stop(); err != nil {
		logger.Error("Failed to stop delivery worker", zap.Error(err))
	}
	hubCancel()

	logger.Info("Server exited")
}
