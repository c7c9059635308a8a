package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payway-gateway/internal/config"
	"github.com/akylbek/payment-system/payway-gateway/internal/handlers"
	"github.com/akylbek/payment-system/payway-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/payway-gateway/internal/middleware"
	"github.com/akylbek/payment-system/payway-gateway/internal/telemetry"
)

const serviceName = "payway-gateway"

// NewRouter wires the public API. idempotency may be nil when Redis is not configured.
func NewRouter(cfg *config.Config, svc interfaces.PaymentService, idempotency interfaces.IdempotencyStore) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.FrontendURL))
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
	})

	paymentHandler := handlers.NewPaymentHandler(svc, !cfg.Release())
	paywayHandler := handlers.NewPayWayHandler(svc)

	api := r.Group("/api")
	{
		api.POST("/payment/create", middleware.IdempotencyMiddleware(idempotency), paymentHandler.CreatePayment)
		api.GET("/payment/status", paymentHandler.GetStatus)

		// PayWay pushback targets
		api.POST("/payway/return", paywayHandler.Return)
		api.POST("/payway/cancel", paywayHandler.Cancel)
	}

	return r
}

func corsMiddleware(frontendURL string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.IdempotencyHeader},
		ExposeHeaders: []string{"Content-Length", middleware.ReplayedHeader},
		MaxAge:        12 * time.Hour,
	}

	if frontendURL == "" {
		telemetry.Logger.Warn("FRONTEND_URL not set, allowing all origins")
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = []string{frontendURL}
		cfg.AllowCredentials = true
		telemetry.Logger.Info("CORS configured", zap.String("origin", frontendURL))
	}

	return cors.New(cfg)
}
