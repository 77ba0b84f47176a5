package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	NATSURL     string

	RateLimitPerMinute        int
	RateLimitBurst            int
	SessionRateLimitPerMinute int
	SessionRateLimitBurst     int

	StrictAmountParsing  bool
	IntakeRequireContact bool
	IntakeSessionTTL     time.Duration
	SessionTTL           time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	SMSProvider        string
	SMSWebhookURL      string
	SMSWebhookToken    string
	EmailProvider      string
	EmailWebhookURL    string
	EmailWebhookToken  string

	// TrustProxy makes the rate limiter key on X-Forwarded-For. Enable only
	// behind a proxy that appends the peer address to the header.
	TrustProxy bool
}

// Load reads the environment, after applying a local .env file when present.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                      port,
		DatabaseURL:               os.Getenv("DB_DSN"),
		NATSURL:                   os.Getenv("NATS_URL"),
		RateLimitPerMinute:        readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:            readInt("RATE_LIMIT_BURST", 30),
		SessionRateLimitPerMinute: readInt("SESSION_RATE_LIMIT_PER_MIN", 600),
		SessionRateLimitBurst:     readInt("SESSION_RATE_LIMIT_BURST", 120),
		StrictAmountParsing:       readBool("STRICT_AMOUNT_PARSING", false),
		IntakeRequireContact:      readBool("INTAKE_REQUIRE_CONTACT", false),
		IntakeSessionTTL:          readDurationSeconds("INTAKE_SESSION_TTL_SECONDS", 1800),
		SessionTTL:                time.Duration(readInt("SESSION_TTL_HOURS", 8)) * time.Hour,
		OutboxPollInterval:        readDurationSeconds("OUTBOX_POLL_INTERVAL_SECONDS", 2),
		OutboxBatchSize:           readInt("OUTBOX_BATCH_SIZE", 100),
		SMSProvider:               os.Getenv("NOTIF_SMS_PROVIDER"),
		SMSWebhookURL:             os.Getenv("NOTIF_SMS_WEBHOOK_URL"),
		SMSWebhookToken:           os.Getenv("NOTIF_SMS_WEBHOOK_TOKEN"),
		EmailProvider:             os.Getenv("NOTIF_EMAIL_PROVIDER"),
		EmailWebhookURL:           os.Getenv("NOTIF_EMAIL_WEBHOOK_URL"),
		EmailWebhookToken:         os.Getenv("NOTIF_EMAIL_WEBHOOK_TOKEN"),
		TrustProxy:                readBool("TRUST_PROXY", false),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}
