package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	RateLimit RateLimitConfig
	Consent   ConsentConfig
	Identity  IdentityConfig
	Logging   LoggingConfig

	MetricsEnabled bool
	// DemoSeed loads a demo widget and entitlement into the in-memory stores.
	DemoSeed bool
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr            string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configures the Postgres stores. An empty URL selects the
// in-memory stores.
type DatabaseConfig struct {
	URL      string
	MaxConns int
}

// RedisConfig configures the rate-limit bucket store. An empty URL selects
// the in-memory bucket store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit publisher. No brokers means audit events
// are only logged.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// RateLimitConfig configures the per-IP limit on the consent endpoint.
type RateLimitConfig struct {
	PerMinute int
	Disabled  bool
}

// ConsentConfig holds record-level defaults.
type ConsentConfig struct {
	DefaultConsentDays int
}

// IdentityConfig holds the email hashing key and the email-proof settings.
type IdentityConfig struct {
	EmailHashKey      string
	EmailProofSecret  string
	RequireEmailProof bool
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

const devEmailHashKey = "dev-email-hash-key-change-in-production"

func setDefaults(v *viper.Viper) {
	v.SetDefault("CONSENTD_ADDR", ":8080")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("READ_TIMEOUT", "10s")
	v.SetDefault("WRITE_TIMEOUT", "15s")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_TOPIC", "consent.audit")
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 100)
	v.SetDefault("RATE_LIMIT_DISABLED", false)
	v.SetDefault("DEFAULT_CONSENT_DAYS", 365)
	v.SetDefault("EMAIL_HASH_KEY", devEmailHashKey)
	v.SetDefault("EMAIL_PROOF_SECRET", "")
	v.SetDefault("REQUIRE_EMAIL_PROOF", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("DEMO_SEED", false)
}

// Load reads configuration from the environment, seeding it from a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            v.GetString("CONSENTD_ADDR"),
			MaxBodyBytes:    v.GetInt64("MAX_BODY_BYTES"),
			ReadTimeout:     v.GetDuration("READ_TIMEOUT"),
			WriteTimeout:    v.GetDuration("WRITE_TIMEOUT"),
			ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		},
		Database: DatabaseConfig{
			URL:      v.GetString("DATABASE_URL"),
			MaxConns: v.GetInt("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("REDIS_URL"),
			PoolSize:     v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns: v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DialTimeout:  v.GetDuration("REDIS_DIAL_TIMEOUT"),
			ReadTimeout:  v.GetDuration("REDIS_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("REDIS_WRITE_TIMEOUT"),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(v.GetString("KAFKA_BROKERS")),
			AuditTopic: v.GetString("AUDIT_TOPIC"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
			Disabled:  v.GetBool("RATE_LIMIT_DISABLED"),
		},
		Consent: ConsentConfig{
			DefaultConsentDays: v.GetInt("DEFAULT_CONSENT_DAYS"),
		},
		Identity: IdentityConfig{
			EmailHashKey:      v.GetString("EMAIL_HASH_KEY"),
			EmailProofSecret:  v.GetString("EMAIL_PROOF_SECRET"),
			RequireEmailProof: v.GetBool("REQUIRE_EMAIL_PROOF"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		MetricsEnabled: v.GetBool("METRICS_ENABLED"),
		DemoSeed:       v.GetBool("DEMO_SEED"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("CONSENTD_ADDR is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("MAX_BODY_BYTES must be positive"))
	}
	if c.RateLimit.PerMinute <= 0 && !c.RateLimit.Disabled {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	if d := c.Consent.DefaultConsentDays; d < 1 || d > 3650 {
		errs = append(errs, fmt.Errorf("DEFAULT_CONSENT_DAYS must be within [1, 3650], got %d", d))
	}
	if c.Identity.EmailHashKey == "" {
		errs = append(errs, errors.New("EMAIL_HASH_KEY is required"))
	}
	if c.Identity.RequireEmailProof && c.Identity.EmailProofSecret == "" {
		errs = append(errs, errors.New("EMAIL_PROOF_SECRET is required when REQUIRE_EMAIL_PROOF is set"))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("AUDIT_TOPIC is required when KAFKA_BROKERS is set"))
	}
	return errors.Join(errs...)
}

// UsesDevEmailHashKey reports whether the built-in development key is active.
func (c *Config) UsesDevEmailHashKey() bool {
	return c.Identity.EmailHashKey == devEmailHashKey
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
