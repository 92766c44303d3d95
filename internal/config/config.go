// Package config provides application configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port     string
	AppEnv   string
	GRPCPort string

	Telegram TelegramConfig
	WebApp   WebAppConfig
	Catalog  CatalogConfig
	Orders   OrdersConfig
	Events   EventsConfig

	RedisAddr          string
	SubmissionDedupTTL time.Duration

	SessionTTL      time.Duration
	DraftTTL        time.Duration
	JanitorInterval time.Duration

	DispatchWorkers   int
	DispatchQueueSize int

	AdminAPIToken  string
	AllowedOrigins string
}

// TelegramConfig controls the Bot API transport. An empty Token disables it.
type TelegramConfig struct {
	Token         string
	APIURL        string
	UseWebhook    bool
	WebhookURL    string
	WebhookSecret string
	AdminChatID   int64
}

// WebAppConfig controls the websocket chat and the embedded shop.
type WebAppConfig struct {
	URL         string
	ChatEnabled bool
}

// CatalogConfig names where products are loaded from.
type CatalogConfig struct {
	Path    string
	URL     string
	Timeout time.Duration
}

// OrdersConfig names the order sinks.
type OrdersConfig struct {
	DBPath  string
	LogPath string
}

// EventsConfig names the optional order event brokers.
type EventsConfig struct {
	RabbitMQURL  string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		AppEnv:   getEnv("APP_ENV", "production"),
		GRPCPort: getEnv("GRPC_PORT", ""),
		Telegram: TelegramConfig{
			Token:         getEnv("TELEGRAM_TOKEN", ""),
			APIURL:        getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			UseWebhook:    getEnvBool("USE_WEBHOOK", false),
			WebhookURL:    strings.TrimSuffix(getEnv("WEBHOOK_URL", ""), "/"),
			WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
			AdminChatID:   getEnvInt64("ADMIN_CHAT_ID", 0),
		},
		WebApp: WebAppConfig{
			URL:         getEnv("WEBAPP_URL", ""),
			ChatEnabled: getEnvBool("WS_CHAT_ENABLED", false),
		},
		Catalog: CatalogConfig{
			Path:    getEnv("CATALOG_PATH", "./data/products.json"),
			URL:     getEnv("CATALOG_URL", ""),
			Timeout: getEnvDuration("CATALOG_TIMEOUT", 5*time.Second),
		},
		Orders: OrdersConfig{
			DBPath:  getEnv("ORDERS_DB_PATH", "./data/orders.db"),
			LogPath: getEnv("ORDERS_LOG_PATH", ""),
		},
		Events: EventsConfig{
			RabbitMQURL:  getEnv("RABBITMQ_URL", ""),
			KafkaBrokers: getEnvList("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "chatshop.orders"),
		},
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		SubmissionDedupTTL: getEnvDuration("SUBMISSION_DEDUP_TTL", 10*time.Minute),
		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		DraftTTL:           getEnvDuration("DRAFT_TTL", 30*time.Minute),
		JanitorInterval:    getEnvDuration("JANITOR_INTERVAL", time.Minute),
		DispatchWorkers:    getEnvInt("DISPATCH_WORKERS", 8),
		DispatchQueueSize:  getEnvInt("DISPATCH_QUEUE_SIZE", 64),
		AdminAPIToken:      getEnv("ADMIN_API_TOKEN", ""),
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", ""),
	}

	if cfg.Telegram.UseWebhook && cfg.Telegram.WebhookSecret == "" && cfg.Telegram.Token != "" {
		// Stable across restarts without exposing the token in the URL.
		sum := sha256.Sum256([]byte(cfg.Telegram.Token))
		cfg.Telegram.WebhookSecret = hex.EncodeToString(sum[:16])
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT cannot be empty")
	}
	if c.Telegram.Token == "" && !c.WebApp.ChatEnabled {
		return errors.New("no transport enabled: set TELEGRAM_TOKEN or WS_CHAT_ENABLED")
	}
	if c.Telegram.UseWebhook {
		if c.Telegram.Token == "" {
			return errors.New("USE_WEBHOOK requires TELEGRAM_TOKEN")
		}
		if _, err := url.ParseRequestURI(c.Telegram.WebhookURL); err != nil {
			return fmt.Errorf("USE_WEBHOOK requires a valid WEBHOOK_URL: %w", err)
		}
	}
	if c.Catalog.Path == "" && c.Catalog.URL == "" {
		return errors.New("CATALOG_PATH or CATALOG_URL must be set")
	}
	if c.Orders.DBPath == "" {
		return errors.New("ORDERS_DB_PATH cannot be empty")
	}
	for name, d := range map[string]time.Duration{
		"CATALOG_TIMEOUT":      c.Catalog.Timeout,
		"SUBMISSION_DEDUP_TTL": c.SubmissionDedupTTL,
		"SESSION_TTL":          c.SessionTTL,
		"DRAFT_TTL":            c.DraftTTL,
		"JANITOR_INTERVAL":     c.JanitorInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.DispatchWorkers <= 0 {
		return errors.New("DISPATCH_WORKERS must be > 0")
	}
	if c.DispatchQueueSize <= 0 {
		return errors.New("DISPATCH_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Origins returns the origins allowed to call the API and open the chat socket.
// Without an explicit list the web app's origin is used.
func (c *Config) Origins() []string {
	if c.AllowedOrigins != "" {
		return splitList(c.AllowedOrigins)
	}
	if u, err := url.Parse(c.WebApp.URL); err == nil && u.Scheme != "" && u.Host != "" {
		return []string{u.Scheme + "://" + u.Host}
	}
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvList(key string) []string {
	return splitList(os.Getenv(key))
}

func splitList(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
