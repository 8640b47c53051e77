package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Everything is env-driven so
// main stays lean; retry and breaker knobs are per-instance overridable where
// repositories and guarded clients are constructed.
type Config struct {
	OpsAddr     string
	DatabaseURL string

	Redis RedisConfig
	Kafka KafkaConfig
	AI    AIConfig

	Retry   RetryConfig
	Breaker BreakerConfig
}

// RedisConfig configures the optional Redis event relay.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional Kafka event relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AIConfig configures the external generation provider.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RetryConfig holds the store retry defaults.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// BreakerConfig holds the AI circuit breaker defaults.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Window           time.Duration
	Cooldown         time.Duration
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		OpsAddr:     envStr("PRAXIS_OPS_ADDR", ":9090"),
		DatabaseURL: envStr("PRAXIS_DATABASE_URL", ""),
		Redis: RedisConfig{
			URL:          envStr("PRAXIS_REDIS_URL", ""),
			PoolSize:     envInt("PRAXIS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("PRAXIS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("PRAXIS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PRAXIS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PRAXIS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("PRAXIS_KAFKA_BROKERS"),
			Topic:   envStr("PRAXIS_KAFKA_TOPIC", "praxis.events"),
		},
		AI: AIConfig{
			APIKey:  envStr("PRAXIS_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
			BaseURL: envStr("PRAXIS_OPENAI_BASE_URL", ""),
			Model:   envStr("PRAXIS_OPENAI_MODEL", "gpt-4o-mini"),
		},
		Retry: RetryConfig{
			MaxRetries: envInt("PRAXIS_RETRY_MAX", 3),
			BaseDelay:  envDuration("PRAXIS_RETRY_BASE_DELAY", 100*time.Millisecond),
			MaxDelay:   envDuration("PRAXIS_RETRY_MAX_DELAY", 2*time.Second),
		},
		Breaker: BreakerConfig{
			FailureThreshold: envInt("PRAXIS_BREAKER_FAILURES", 5),
			SuccessThreshold: envInt("PRAXIS_BREAKER_SUCCESSES", 2),
			Window:           envDuration("PRAXIS_BREAKER_WINDOW", time.Minute),
			Cooldown:         envDuration("PRAXIS_BREAKER_COOLDOWN", 30*time.Second),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
