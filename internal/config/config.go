package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string
	Port           string

	// EncryptionKey protects stored payment credentials at rest (64 hex chars).
	EncryptionKey string

	// Per-provider credentials. Missing values are fatal at startup for
	// the affected provider, never at call time.
	CardAPIKey        string
	CardWebhookSecret string
	CardBaseURL       string

	MomoAPIUser         string
	MomoAPIKey          string
	MomoSubscriptionKey string
	MomoWebhookSecret   string
	MomoBaseURL         string

	WebhookRateLimit  int
	WebhookRateWindow time.Duration
	PaymentRateLimit  int
	PaymentRateWindow time.Duration
}

func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	cardBaseURL := os.Getenv("CARD_API_BASE_URL")
	if cardBaseURL == "" {
		cardBaseURL = "https://api.cardlink.io"
	}
	momoBaseURL := os.Getenv("MOMO_API_BASE_URL")
	if momoBaseURL == "" {
		momoBaseURL = "https://momo.mtn.com"
	}

	return &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		NatsURL:        os.Getenv("NATS_URL"),
		JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),
		Port:           port,

		EncryptionKey: os.Getenv("ENCRYPTION_KEY"),

		CardAPIKey:        os.Getenv("CARD_API_KEY"),
		CardWebhookSecret: os.Getenv("CARD_WEBHOOK_SECRET"),
		CardBaseURL:       cardBaseURL,

		MomoAPIUser:         os.Getenv("MOMO_API_USER"),
		MomoAPIKey:          os.Getenv("MOMO_API_KEY"),
		MomoSubscriptionKey: os.Getenv("MOMO_SUBSCRIPTION_KEY"),
		MomoWebhookSecret:   os.Getenv("MOMO_WEBHOOK_SECRET"),
		MomoBaseURL:         momoBaseURL,

		WebhookRateLimit:  envInt("WEBHOOK_RATE_LIMIT", 120),
		WebhookRateWindow: time.Minute,
		PaymentRateLimit:  envInt("PAYMENT_RATE_LIMIT", 30),
		PaymentRateWindow: time.Minute,
	}
}

// Validate fails the process on missing secrets. A provider with no HMAC
// secret cannot authenticate its webhooks; discovering that on the first
// inbound callback would be far too late.
func (c *Config) Validate() error {
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if c.CardWebhookSecret == "" {
		return fmt.Errorf("CARD_WEBHOOK_SECRET is required")
	}
	if c.CardAPIKey == "" {
		return fmt.Errorf("CARD_API_KEY is required")
	}
	if c.MomoWebhookSecret == "" {
		return fmt.Errorf("MOMO_WEBHOOK_SECRET is required")
	}
	if c.MomoAPIUser == "" || c.MomoAPIKey == "" {
		return fmt.Errorf("MOMO_API_USER and MOMO_API_KEY are required")
	}
	return nil
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil || n <= 0 {
		return fallback
	}
	return n
}
