package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Metrics backend selection values.
const (
	MetricsBackendRedis    = "redis"
	MetricsBackendInfluxDB = "influxdb"
)

// Rate limiter algorithm selection values.
const (
	RateLimiterFixed   = "fixed"
	RateLimiterSliding = "sliding"
)

// Config holds all application configuration
type Config struct {
	Redis     RedisConfig
	InfluxDB  InfluxDBConfig
	Kafka     KafkaConfig
	API       APIConfig
	Pipeline  PipelineConfig
	LogLevel  string
	LogFormat string
}

// RedisConfig holds backing-store configuration. KeyPrefix namespaces
// every key the application writes, so test runs and parallel
// deployments can share one server.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// InfluxDBConfig holds configuration for the optional InfluxDB metrics
// backend.
type InfluxDBConfig struct {
	URL    string
	Org    string
	Token  string
	Bucket string
}

// KafkaConfig holds configuration for the Kafka reading ingestion path.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	Topic         string
	GroupID       string
	ConsumerCount int
	BatchSize     int
	BatchTimeout  time.Duration
}

// APIConfig holds HTTP server configuration.
type APIConfig struct {
	Addr             string
	RateLimit        RateLimitConfig
	RateLimitEnabled bool
}

// RateLimitConfig selects the limiter algorithm and its window.
type RateLimitConfig struct {
	Algorithm string
	Interval  time.Duration
	MaxHits   int
}

// PipelineConfig holds ingestion pipeline configuration.
type PipelineConfig struct {
	MetricsBackend string
	WorkerCount    int
	QueueSize      int
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "solar"),
		},
		InfluxDB: InfluxDBConfig{
			URL:    getEnv("INFLUXDB_URL", "http://localhost:8086"),
			Org:    getEnv("INFLUXDB_ORG", "solar"),
			Token:  getEnv("INFLUX_TOKEN", ""),
			Bucket: getEnv("INFLUXDB_BUCKET", "solar-site-metrics"),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvBool("KAFKA_ENABLED", false),
			Brokers:       getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:         getEnv("KAFKA_TOPIC", "solar-meter-readings"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "solar-site-monitoring"),
			ConsumerCount: getEnvInt("KAFKA_CONSUMER_COUNT", 4),
			BatchSize:     getEnvInt("KAFKA_BATCH_SIZE", 1000),
			BatchTimeout:  getEnvDuration("KAFKA_BATCH_TIMEOUT", 1*time.Second),
		},
		API: APIConfig{
			Addr: getEnv("API_ADDR", ":8081"),
			RateLimit: RateLimitConfig{
				Algorithm: getEnv("RATE_LIMITER_ALGORITHM", RateLimiterSliding),
				Interval:  getEnvDuration("RATE_LIMITER_INTERVAL", 1*time.Minute),
				MaxHits:   getEnvInt("RATE_LIMITER_MAX_HITS", 100),
			},
			RateLimitEnabled: getEnvBool("RATE_LIMITER_ENABLED", true),
		},
		Pipeline: PipelineConfig{
			MetricsBackend: getEnv("METRICS_BACKEND", MetricsBackendRedis),
			WorkerCount:    getEnvInt("PIPELINE_WORKER_COUNT", 4),
			QueueSize:      getEnvInt("PIPELINE_QUEUE_SIZE", 10000),
		},
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Pipeline.MetricsBackend {
	case MetricsBackendRedis, MetricsBackendInfluxDB:
	default:
		return fmt.Errorf("unknown metrics backend %q", c.Pipeline.MetricsBackend)
	}

	switch c.API.RateLimit.Algorithm {
	case RateLimiterFixed, RateLimiterSliding:
	default:
		return fmt.Errorf("unknown rate limiter algorithm %q", c.API.RateLimit.Algorithm)
	}

	if c.API.RateLimit.MaxHits < 1 {
		return fmt.Errorf("rate limiter max hits must be positive, got %d", c.API.RateLimit.MaxHits)
	}

	return nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.Split(value, ",")
	}
	return defaultValue
}
