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

	"github.com/SherClockHolmes/webpush-go"

	"charging-queue-backend/config"
	"charging-queue-backend/internal/api"
	"charging-queue-backend/internal/db"
	"charging-queue-backend/internal/events"
	"charging-queue-backend/internal/ingest"
	"charging-queue-backend/internal/notification"
	"charging-queue-backend/internal/queue"
	"charging-queue-backend/internal/store"
	"charging-queue-backend/internal/stream"
)

func main() {
	logger := log.New(os.Stdout, "charged ", log.LstdFlags)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatalf("VAPID keys must be configured. Please generate them and add them to your config file.")
	}

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	logger.Println("data store initialized")

	// One bus instance, shared by injection; no ambient globals.
	bus := events.NewBus()

	coordinator := queue.NewCoordinator(appStore, bus, cfg.Queue.ClaimWindow, cfg.Queue.PerSlotMinutes)
	dispatcher := notification.NewDispatcher(appStore, bus)
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, dispatcher, &webpushOptions)

	ingestSvc := ingest.NewService(cfg, appStore, bus, coordinator, dispatcher, workerPool)
	go ingestSvc.Run(ctx)

	gateway := stream.NewGateway(bus, appStore, cfg.Stream.Heartbeat, cfg.Stream.BufferSize)
	handler := api.NewHandler(appStore, coordinator, ingestSvc, &webpushOptions)

	router := api.NewRouter(cfg, handler, gateway)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}
