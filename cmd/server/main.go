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

	"recon-service/config"
	"recon-service/internal/api"
	"recon-service/internal/broker"
	"recon-service/internal/provider"
	"recon-service/internal/redisclient"
	"recon-service/internal/service"
	"recon-service/internal/store"
	"recon-service/internal/util"
	"recon-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting order reconciliation service")

	tp, err := util.InitTracer("recon-service", cfg.Observ.JaegerEndpoint)
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

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicSync)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	storefrontClient := provider.NewStorefrontClient(cfg.Storefront.APIVersion, cfg.Storefront.Timeout)
	carrierClient := provider.NewCarrierClient(cfg.Carrier.BaseURL, cfg.Carrier.Timeout)

	importService := service.NewImportService(db, storefrontClient, eventPublisher, service.ImportOptions{
		PageLimit: cfg.Storefront.PageLimit,
		Window:    cfg.Sync.ImportWindow,
		Lookback:  cfg.Sync.ImportLookback,
		MaxPages:  cfg.Sync.ImportMaxPages,
	})
	matchService := service.NewMatchService(db, carrierClient, eventPublisher, nil, cfg.Carrier.CountryFilters)
	statusService := service.NewStatusService(db, carrierClient, eventPublisher)

	scheduler := worker.NewScheduler(db, importService, matchService, statusService, redisClient, redisClient, worker.Options{
		FastInterval:      cfg.Sync.FastInterval,
		SlowInterval:      cfg.Sync.SlowInterval,
		BusinessStartHour: cfg.Sync.BusinessStartHour,
		BusinessEndHour:   cfg.Sync.BusinessEndHour,
		CycleTimeout:      cfg.Sync.CycleTimeout,
		RunRetention:      cfg.Sync.RunRetention,
	})

	schedulerCtx, schedulerCancel := context.WithCancel(context.Background())
	defer schedulerCancel()

	go func() {
		if err := scheduler.Start(schedulerCtx); err != nil && err != context.Canceled {
			log.Printf("Scheduler error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(db, scheduler)
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

	schedulerCancel()

	log.Println("Server exited")
}
