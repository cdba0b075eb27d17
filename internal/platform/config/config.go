package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// Store selects the keyed store backend.
type Store struct {
	Backend     string
	DatabaseURL string
}

// RedisConfig configures the catalog cache. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Catalog locates the objectives file and its cache TTL. An empty File uses
// the embedded catalog.
type Catalog struct {
	File     string
	CacheTTL time.Duration
}

// Shop locates the items seeded into the shop on start. An empty File uses
// the embedded items.
type Shop struct {
	File string
}

// Kafka configures the event publisher and the reconciler's consumer group.
// No brokers means events are logged.
type Kafka struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// Config is the full process configuration.
type Config struct {
	Server   Server
	Store    Store
	Redis    RedisConfig
	Catalog  Catalog
	Shop     Shop
	Kafka    Kafka
	LogLevel string
}

// FromEnv builds the config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present; real
// environment variables win over it.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		v := os.Getenv(key)
		if v == "" {
			return def
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
			return def
		}
		return n
	}

	cfg := Config{
		Server: Server{
			Addr:          getenv("PPS_ADDR", ":8080"),
			ReadTimeout:   duration("PPS_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:  duration("PPS_WRITE_TIMEOUT", 30*time.Second),
			JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:     getenv("JWT_ISSUER", "pps"),
			JWTAudience:   getenv("JWT_AUDIENCE", "pps-api"),
		},
		Store: Store{
			Backend:     getenv("PPS_STORE", StoreMemory),
			DatabaseURL: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Catalog: Catalog{
			File:     os.Getenv("CATALOG_FILE"),
			CacheTTL: duration("CATALOG_CACHE_TTL", 10*time.Minute),
		},
		Shop: Shop{
			File: os.Getenv("SHOP_FILE"),
		},
		Kafka: Kafka{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:         getenv("KAFKA_TOPIC", "pps-events"),
			ConsumerGroup: getenv("KAFKA_CONSUMER_GROUP", "pps-reconcile"),
		},
		LogLevel: getenv("LOG_LEVEL", "info"),
	}

	switch cfg.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if cfg.Store.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required when PPS_STORE=postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("PPS_STORE: unknown backend %q", cfg.Store.Backend))
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
