package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/payment-gateway/internal/api"
	"github.com/akylbek/payment-system/payment-gateway/internal/config"
	"github.com/akylbek/payment-system/payment-gateway/internal/handlers"
	"github.com/akylbek/payment-system/payment-gateway/internal/idempotency"
	"github.com/akylbek/payment-system/payment-gateway/internal/provider"
	"github.com/akylbek/payment-system/payment-gateway/internal/ratelimit"
	"github.com/akylbek/payment-system/payment-gateway/internal/repository"
	"github.com/akylbek/payment-system/payment-gateway/internal/secure"
	"github.com/akylbek/payment-system/payment-gateway/internal/service"
	"github.com/akylbek/payment-system/payment-gateway/internal/signature"
	"github.com/akylbek/payment-system/payment-gateway/internal/telemetry"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize telemetry
	if err := telemetry.InitTelemetry("payment-gateway"); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	telemetry.Logger.Info("Starting Payment Gateway")

	// Missing secrets are fatal here, never at call time
	if err := cfg.Validate(); err != nil {
		telemetry.Logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if _, err := secure.NewCipher(cfg.EncryptionKey); err != nil {
		telemetry.Logger.Fatal("Invalid encryption key", zap.Error(err))
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	orders := repository.NewOrderRepository(db)
	events := repository.NewPaymentEventRepository(db)
	security := repository.NewSecurityEventRepository(db)
	for _, init := range []func() error{orders.InitDB, events.InitDB, security.InitDB} {
		if err := init(); err != nil {
			telemetry.Logger.Fatal("Failed to initialize database", zap.Error(err))
		}
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	// Connect to NATS
	nc, err := nats.Connect(cfg.NatsURL)
	if err != nil {
		telemetry.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	// Connect to Kafka
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "payment.events",
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()

	// Register providers. Registration order is the dispatch tie-break:
	// card before mobile money.
	registry := provider.NewRegistry()
	registry.Register(provider.CardProviderID, func() (provider.Provider, error) {
		return provider.NewCardProvider(provider.CardConfig{
			APIKey:        cfg.CardAPIKey,
			WebhookSecret: cfg.CardWebhookSecret,
			BaseURL:       cfg.CardBaseURL,
		}, telemetry.Logger), nil
	})
	registry.Register(provider.MomoProviderID, func() (provider.Provider, error) {
		return provider.NewMomoProvider(provider.MomoConfig{
			APIUser:         cfg.MomoAPIUser,
			APIKey:          cfg.MomoAPIKey,
			SubscriptionKey: cfg.MomoSubscriptionKey,
			WebhookSecret:   cfg.MomoWebhookSecret,
			BaseURL:         cfg.MomoBaseURL,
		}, telemetry.Logger), nil
	})

	// Rate limiting: fail-open, counters shared via Redis
	limits := ratelimit.NewRegistry(
		ratelimit.NewRedisCounterStore(redisClient),
		map[string]ratelimit.Rule{
			api.ScopeWebhook: {MaxRequests: cfg.WebhookRateLimit, Window: cfg.WebhookRateWindow},
			api.ScopePayment: {MaxRequests: cfg.PaymentRateLimit, Window: cfg.PaymentRateWindow},
		},
		ratelimit.FailOpen,
		telemetry.Logger,
	)

	// Idempotency: fail-closed, shared via Redis
	ledger := idempotency.NewRedisLedger(redisClient, idempotency.DefaultTTL)

	webhookSvc := service.NewWebhookService(
		registry, ledger, orders, events, security,
		kafkaWriter, nc, telemetry.Logger,
	)

	// The card network's timestamped scheme gets the strict ingress
	// window here; provider-level verification runs the wider one.
	ingressVerifiers := map[string]signature.Verifier{
		provider.CardProviderID: signature.NewTimestampedVerifier(
			cfg.CardWebhookSecret, signature.ToleranceIngress, true,
		),
	}

	r := api.NewRouter(
		handlers.NewWebhookHandler(webhookSvc, ingressVerifiers),
		handlers.NewPaymentHandler(registry),
		handlers.NewHealthHandler(registry),
		limits,
	)

	// Setup HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		telemetry.Logger.Info("Payment Gateway starting", zap.String("port", cfg.Port))
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
