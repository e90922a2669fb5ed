// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC health service listens on; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr enables the Redis token-bucket rate limiter when set (e.g. localhost:6379).
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim of access tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim of access tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// RefreshTokensPerUser is how many refresh tokens a user keeps after each issuance; older ones are pruned.
	RefreshTokensPerUser int `mapstructure:"REFRESH_TOKENS_PER_USER"`

	// IngestMaxBatch bounds the number of signals accepted in one batch request.
	IngestMaxBatch int `mapstructure:"INGEST_MAX_BATCH"`
	// IngestMaxSequence is the largest sequence number a signal may carry.
	IngestMaxSequence int64 `mapstructure:"INGEST_MAX_SEQUENCE"`

	// Rate limiting (only active when RedisAddr is set).
	RateLimitEnabled        bool   `mapstructure:"RATE_LIMIT_ENABLED"`
	RateLimitCapacity       int    `mapstructure:"RATE_LIMIT_CAPACITY"`
	RateLimitRefillTokens   int    `mapstructure:"RATE_LIMIT_REFILL_TOKENS"`
	RateLimitRefillInterval string `mapstructure:"RATE_LIMIT_REFILL_INTERVAL"`
	RateLimitTTL            string `mapstructure:"RATE_LIMIT_TTL"`

	// ReviewPolicyPath is an optional Rego file replacing the built-in tamper review policy.
	ReviewPolicyPath string `mapstructure:"REVIEW_POLICY_PATH"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name on all telemetry.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "proctor-auth")
	v.SetDefault("JWT_AUDIENCE", "proctor-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("REFRESH_TOKENS_PER_USER", 5)
	v.SetDefault("INGEST_MAX_BATCH", 100)
	v.SetDefault("INGEST_MAX_SEQUENCE", int64(1_000_000_000))
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_CAPACITY", 60)
	v.SetDefault("RATE_LIMIT_REFILL_TOKENS", 1)
	v.SetDefault("RATE_LIMIT_REFILL_INTERVAL", "1s")
	v.SetDefault("RATE_LIMIT_TTL", "10m")
	v.SetDefault("REVIEW_POLICY_PATH", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "proctor-ingest")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.RefreshTokensPerUser < 1 || cfg.RefreshTokensPerUser > 50 {
		return nil, errors.New("config: REFRESH_TOKENS_PER_USER must be between 1 and 50")
	}
	if cfg.IngestMaxBatch < 1 || cfg.IngestMaxBatch > 1000 {
		return nil, errors.New("config: INGEST_MAX_BATCH must be between 1 and 1000")
	}
	if cfg.IngestMaxSequence < 1 {
		return nil, errors.New("config: INGEST_MAX_SEQUENCE must be positive")
	}
	if cfg.RateLimitCapacity < 1 {
		return nil, errors.New("config: RATE_LIMIT_CAPACITY must be positive")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "proctor-ingest"
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return parseDuration(c.JWTRefreshTTL, 720*time.Hour)
}

// RateLimitInterval parses RateLimitRefillInterval. Returns 1s if unset or invalid.
func (c *Config) RateLimitInterval() time.Duration {
	return parseDuration(c.RateLimitRefillInterval, time.Second)
}

// RateLimitKeyTTL parses RateLimitTTL. Returns 10m if unset or invalid.
func (c *Config) RateLimitKeyTTL() time.Duration {
	return parseDuration(c.RateLimitTTL, 10*time.Minute)
}

// AuthEnabled reports whether both JWT keys are configured.
func (c *Config) AuthEnabled() bool {
	return c != nil && c.JWTPrivateKey != "" && c.JWTPublicKey != ""
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
