package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/payment-gateway/internal/handlers"
	"github.com/akylbek/payment-system/payment-gateway/internal/ratelimit"
	"github.com/akylbek/payment-system/payment-gateway/internal/telemetry"
)

// Scopes for the rate limiter. Each scope carries its own rule; webhook
// ingress and caller-facing payment operations are limited independently.
const (
	ScopeWebhook = "webhook"
	ScopePayment = "payment"
)

func NewRouter(
	webhookHandler *handlers.WebhookHandler,
	paymentHandler *handlers.PaymentHandler,
	healthHandler *handlers.HealthHandler,
	limits *ratelimit.Registry,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Liveness
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "payment-gateway"})
	})
	r.GET("/health/providers", healthHandler.Providers)

	// Webhook ingress
	r.POST("/webhooks/:provider", ratelimit.Middleware(limits, ScopeWebhook), webhookHandler.Handle)

	// Payment operations
	payments := r.Group("/payments", ratelimit.Middleware(limits, ScopePayment))
	payments.POST("/initiate", paymentHandler.Initiate)
	payments.GET("/verify", paymentHandler.Verify)
	payments.POST("/refund", paymentHandler.Refund)

	return r
}
