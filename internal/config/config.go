package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"parkgate/internal/cache"
	"parkgate/internal/database"
	"parkgate/internal/messaging"
	"parkgate/internal/search"
)

// Config holds the server and consumer configuration
type Config struct {
	Port           string
	BasePath       string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration
	TimeZone       string
	CORSOrigins    []string

	Database      database.Config
	NATS          messaging.Config
	Redis         cache.Config
	Elasticsearch search.Config
	Auth          AuthConfig
	WebSocket     WebSocketConfig
	Reconcile     ReconcileConfig
}

// AuthConfig configures login tokens
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// WebSocketConfig configures the live feed hub
type WebSocketConfig struct {
	AllowedOrigins []string
	SendBuffer     int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
}

// ReconcileConfig configures the periodic occupancy reconciliation job
type ReconcileConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "3000"),
		BasePath:       getEnv("API_BASE_PATH", "/api/v1"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,
		TimeZone:       getEnv("PARKING_TIMEZONE", "UTC"),
		CORSOrigins:    getEnvList("CORS_ALLOWED_ORIGINS"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "parkgate"),
			Password:           getEnv("DB_PASSWORD", "parkgate"),
			DBName:             getEnv("DB_NAME", "parkgate"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", true),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "parkgate"),
			ClientID:  getEnv("NATS_CLIENT_ID", "parkgate-api"),
		},

		Redis: cache.Config{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_ZONE_TTL_SEC", 30)) * time.Second,
		},

		Elasticsearch: search.Config{
			Enabled:    getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:        getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
			Index:      getEnv("ELASTICSEARCH_INDEX", "tickets"),
			Username:   getEnv("ELASTICSEARCH_USERNAME", ""),
			Password:   getEnv("ELASTICSEARCH_PASSWORD", ""),
			MaxRetries: getEnvInt("ELASTICSEARCH_MAX_RETRIES", 3),
			Timeout:    getEnvDuration("ELASTICSEARCH_TIMEOUT", 30*time.Second),
		},

		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "change-me"),
			TokenTTL:  time.Duration(getEnvInt("JWT_TTL_HOURS", 12)) * time.Hour,
		},

		WebSocket: WebSocketConfig{
			AllowedOrigins: getEnvList("WS_ALLOWED_ORIGINS"),
			SendBuffer:     getEnvInt("WS_SEND_BUFFER", 64),
			WriteTimeout:   getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PingInterval:   getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
		},

		Reconcile: ReconcileConfig{
			Enabled:  getEnvBool("RECONCILE_ENABLED", true),
			Interval: getEnvDuration("RECONCILE_INTERVAL", time.Minute),
		},
	}
}

// Location resolves TimeZone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
