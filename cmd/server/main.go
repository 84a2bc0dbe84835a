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

	"marketplace-service/config"
	"marketplace-service/internal/api"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/broker"
	"marketplace-service/internal/mailer"
	"marketplace-service/internal/redisclient"
	"marketplace-service/internal/service"
	"marketplace-service/internal/storage"
	"marketplace-service/internal/store"
	"marketplace-service/internal/util"
	"marketplace-service/internal/worker"

	"github.com/gin-gonic/gin"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting marketplace service")

	tp, err := util.InitTracer(util.ServiceName, util.TracerOptions{
		JaegerEndpoint: cfg.Observ.JaegerEndpoint,
		Environment:    cfg.Server.Env,
		SampleRatio:    cfg.Observ.TraceSampleRatio,
	})
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

	db, err := store.NewStore(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	ctx := context.Background()
	if err := service.Bootstrap(ctx, db, cfg.Bootstrap); err != nil {
		log.Fatalf("Failed to bootstrap database: %v", err)
	}

	var guard service.CheckoutGuard
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, using in-process checkout guard", zap.Error(err))
		guard = redisclient.NewMemoryClient()
	} else {
		defer redisClient.Close()
		guard = redisClient
		logger.Info("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)
	logger.Info("Kafka producer initialized")

	smtpMailer := mailer.NewMailer(cfg.Mail, logger)

	var objects service.ObjectStorage
	switch cfg.Storage.Driver {
	case "stub":
		objects = storage.NewStubObjectStorage()
	default:
		s3Storage, err := storage.NewS3ObjectStorage(ctx, cfg.Storage, logger)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		objects = s3Storage
	}

	tokens := auth.NewTokenManager(cfg.Auth)
	notifier := service.NewNotifier(cfg.Notify.Channel, eventPublisher, smtpMailer)
	inventory := service.NewInventoryService(db)
	payments := service.NewPaymentService(db)

	services := api.Services{
		Accounts:  service.NewAccountService(db, tokens),
		Catalog:   service.NewCatalogService(db, cfg.Business.PublicPageSize),
		Cart:      service.NewCartService(db),
		Orders:    service.NewOrderService(db, inventory, payments, guard, notifier, cfg.Business),
		Lifecycle: service.NewOrderLifecycle(db, inventory, notifier),
		Inventory: inventory,
		Vendors:   service.NewVendorService(db, inventory, objects, cfg.Storage.Bucket, cfg.Business.LowStockThreshold),
		Admin:     service.NewAdminService(db),
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.NotificationGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, db, smtpMailer)
	if cfg.Notify.Channel == service.ChannelEvent {
		go func() {
			if err := notificationWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Notification worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	handler := api.NewHandler(services, tokens, func(ctx context.Context) error {
		if err := db.GetDB().PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if redisClient != nil {
			if err := redisClient.GetClient().Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	})
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
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
	if err := notificationWorker.Stop(); err != nil {
		logger.Warn("Error stopping notification worker", zap.Error(err))
	}

	logger.Info("Server exited")
}
