package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP    HTTPConfig
	Mongo   MongoConfig
	JWT     JWTConfig
	Gateway GatewayConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	OTLP    string
	Log     string
}

type HTTPConfig struct {
	Port            string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
}

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type GatewayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Currency  string
	Timeout   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Load reads the process environment, optionally seeded from a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var errs []string
	duration := func(key, def string) time.Duration {
		d, err := ParseDuration(getEnv(key, def))
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
		return d
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:            getEnv("PORT", "8000"),
			RequestTimeout:  duration("REQUEST_TIMEOUT", "30s"),
			ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", "10s"),
		},
		Mongo: MongoConfig{
			URI:      getEnv("MONGODB_URI", ""),
			Database: getEnv("MONGODB_DATABASE", "storefront"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Expiry: duration("JWT_EXPIRY", "7d"),
		},
		Gateway: GatewayConfig{
			KeyID:     getEnv("GATEWAY_KEY_ID", ""),
			KeySecret: getEnv("GATEWAY_KEY_SECRET", ""),
			BaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
			Currency:  getEnv("CURRENCY", "INR"),
			Timeout:   duration("GATEWAY_TIMEOUT", "10s"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "order-events"),
		},
		OTLP: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Log:  getEnv("LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Mongo.URI == "" {
		return fmt.Errorf("MONGODB_URI is required")
	}
	if c.Mongo.Database == "" {
		return fmt.Errorf("MONGODB_DATABASE is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.JWT.Expiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY must be positive")
	}
	if c.Gateway.KeyID == "" {
		return fmt.Errorf("GATEWAY_KEY_ID is required")
	}
	if c.Gateway.KeySecret == "" {
		return fmt.Errorf("GATEWAY_KEY_SECRET is required")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.Gateway.Currency == "" {
		return fmt.Errorf("CURRENCY is required")
	}
	return nil
}

// ParseDuration accepts everything time.ParseDuration does plus a whole-day
// suffix such as "7d".
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
