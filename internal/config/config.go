package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stream   StreamConfig
	Events   EventsConfig
	Sales    SalesConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// BusyTimeout is applied to sqlite connections with PRAGMA, so the DSN
	// stays the same for the cgo and pure-Go drivers.
	BusyTimeout  time.Duration
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	// Addr empty disables the menu price cache.
	Addr     string
	Password string
	DB       int
	PriceTTL time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type StreamConfig struct {
	KeepAlive  time.Duration
	BufferSize int
}

type EventsConfig struct {
	HistoryDefault int
	HistoryMax     int
}

type SalesConfig struct {
	Timezone string
}

type LogConfig struct {
	Dir     string
	Level   string
	NoColor bool
}

// LoadDotEnv loads a .env file when one exists. It reports whether a file was read.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":4000"),
			ReadTimeout:     getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 5*time.Second),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver:       strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
			DSN:          getEnv("DB_DSN", "file:yurica.db"),
			BusyTimeout:  getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 1),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 1),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 0)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PriceTTL: getEnvDuration("MENU_PRICE_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_EVENTS", "yurica.pos.events"),
		},
		Stream: StreamConfig{
			KeepAlive:  getEnvDuration("STREAM_KEEPALIVE", 15*time.Second),
			BufferSize: getEnvInt("STREAM_BUFFER_SIZE", 32),
		},
		Events: EventsConfig{
			HistoryDefault: getEnvInt("EVENTS_HISTORY_DEFAULT", 200),
			HistoryMax:     getEnvInt("EVENTS_HISTORY_MAX", 500),
		},
		Sales: SalesConfig{
			Timezone: getEnv("SALES_TIMEZONE", "Local"),
		},
		Log: LogConfig{
			Dir:     getEnv("LOG_DIR", "logs"),
			Level:   getEnv("LOG_LEVEL", "info"),
			NoColor: getEnvBool("LOG_NO_COLOR", false),
		},
	}
}

// Location resolves SALES_TIMEZONE, falling back to the process local zone.
func (c SalesConfig) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
