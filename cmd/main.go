package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/api"
	"github.com/akylbek/payment-system/payway-gateway/internal/cache"
	"github.com/akylbek/payment-system/payway-gateway/internal/config"
	"github.com/akylbek/payment-system/payway-gateway/internal/events"
	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/payway"
	"github.com/akylbek/payment-system/payway-gateway/internal/repository"
	"github.com/akylbek/payment-system/payway-gateway/internal/service"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

func main() {
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found. Reading from environment.")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	// Initialize telemetry
	if err := telemetry.InitTelemetry("payway-gateway", cfg.OTLPEndpoint, cfg.Release()); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting PayWay gateway",
		zap.String("store", cfg.StoreDriver),
		zap.String("events", cfg.EventsDriver),
		zap.String("callback_hash_mode", cfg.PayWay.CallbackHashMode),
	)

	// Payment store
	var repo interfaces.PaymentRepository
	switch cfg.StoreDriver {
	case "memory":
		telemetry.Logger.Warn("Using in-memory payment store, payments are lost on restart")
		repo = repository.NewMemoryPaymentRepository()
	default:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		pgRepo := repository.NewPaymentRepository(db)
		if err := pgRepo.InitDB(); err != nil {
			telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
		}
		repo = pgRepo
	}

	// Redis is optional: status cache and idempotency replay
	var (
		statusCache interfaces.StatusCache
		idempotency interfaces.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			telemetry.Logger.Fatal("Invalid REDIS_URL", zap.Error(err))
		}
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err = redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			telemetry.Logger.Warn("Redis unreachable, continuing without cache", zap.Error(err))
		} else {
			statusCache = cache.NewStatusCache(redisClient, cache.DefaultTTL)
			idempotency = cache.NewIdempotencyStore(redisClient)
		}
	}

	// Event publishing
	publisher, err := events.NewPublisher(cfg.EventsDriver, cfg.KafkaBrokers, cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to set up event publisher", zap.Error(err))
	}
	defer publisher.Close()

	provider := payway.NewClient(cfg.PayWay)

	opts := []service.Option{}
	if statusCache != nil {
		opts = append(opts, service.WithStatusCache(statusCache))
	}
	paymentService := service.NewPaymentService(repo, provider, publisher, cfg.PayWay, opts...)

	gin.SetMode(cfg.GinMode)
	r := api.NewRouter(cfg, paymentService, idempotency)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("PayWay gateway starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	telemetry.Logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		telemetry.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	telemetry.Logger.Info("Server exited")
}
