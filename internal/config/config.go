// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"chatdesk/backend/internal/platform/apperr"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// LogLevel is the zerolog level (trace, debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is "json" (default) or "console".
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// EncryptionKey is base64 key material for business credential encryption. Required.
	EncryptionKey string `mapstructure:"ENCRYPTION_KEY"`
	// SessionPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file used to sign session tokens. Required.
	SessionPrivateKey string `mapstructure:"SESSION_PRIVATE_KEY"`
	// SessionPublicKey is the PEM-encoded public key or path to file. Required.
	SessionPublicKey string `mapstructure:"SESSION_PUBLIC_KEY"`
	// SessionIssuer is the iss claim on session tokens.
	SessionIssuer string `mapstructure:"SESSION_ISSUER"`
	// SessionAudience is the aud claim on session tokens.
	SessionAudience string `mapstructure:"SESSION_AUDIENCE"`
	// SessionTTLRaw is the session lifetime (e.g. "24h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// StorageTimeoutRaw bounds each storage call made by the guard and the handoff state machine.
	StorageTimeoutRaw string `mapstructure:"STORAGE_TIMEOUT"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PolicyEngine selects the permission evaluator: "static" or "rego".
	PolicyEngine string `mapstructure:"POLICY_ENGINE"`

	// KafkaBrokers is a comma-separated list of brokers for conversation events; empty disables the stream.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the topic conversation mode changes are written to.
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OpenTelemetry service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Secrets is the validated key material handed to constructors at process start.
type Secrets struct {
	EncryptionKey     []byte
	SessionPrivateKey string
	SessionPublicKey  string
}

const minEncryptionKeyLen = 32

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Missing key material is an
// apperr.KindConfiguration error; other invalid values are plain errors.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENCRYPTION_KEY", "")
	v.SetDefault("SESSION_PRIVATE_KEY", "")
	v.SetDefault("SESSION_PUBLIC_KEY", "")
	v.SetDefault("SESSION_ISSUER", "chatdesk-auth")
	v.SetDefault("SESSION_AUDIENCE", "chatdesk-api")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("STORAGE_TIMEOUT", "3s")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("POLICY_ENGINE", "static")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "chatdesk-conversation-events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "chatdesk-backend")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	switch cfg.PolicyEngine {
	case "static", "rego":
	default:
		return nil, errors.New("config: POLICY_ENGINE must be static or rego")
	}
	if d, err := time.ParseDuration(cfg.SessionTTLRaw); err != nil || d <= 0 {
		return nil, errors.New("config: SESSION_TTL must be a positive duration")
	}
	if d, err := time.ParseDuration(cfg.StorageTimeoutRaw); err != nil || d <= 0 {
		return nil, errors.New("config: STORAGE_TIMEOUT must be a positive duration")
	}
	if _, err := cfg.Secrets(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Secrets decodes and validates the key material. Returns an apperr.KindConfiguration error when
// any required value is absent or unusable; callers must never fall back to a default key.
func (c *Config) Secrets() (Secrets, error) {
	raw := strings.TrimSpace(c.EncryptionKey)
	if raw == "" {
		return Secrets{}, apperr.New(apperr.KindConfiguration, "config", "ENCRYPTION_KEY must be set")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Secrets{}, apperr.New(apperr.KindConfiguration, "config", "ENCRYPTION_KEY must be base64")
	}
	if len(key) < minEncryptionKeyLen {
		return Secrets{}, apperr.New(apperr.KindConfiguration, "config", "ENCRYPTION_KEY must decode to at least 32 bytes")
	}
	if strings.TrimSpace(c.SessionPrivateKey) == "" || strings.TrimSpace(c.SessionPublicKey) == "" {
		return Secrets{}, apperr.New(apperr.KindConfiguration, "config", "SESSION_PRIVATE_KEY and SESSION_PUBLIC_KEY must be set")
	}
	return Secrets{
		EncryptionKey:     key,
		SessionPrivateKey: c.SessionPrivateKey,
		SessionPublicKey:  c.SessionPublicKey,
	}, nil
}

// SessionTTL parses SessionTTLRaw. Load has already validated it; returns 24h if unparsable.
func (c *Config) SessionTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionTTLRaw)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// StorageTimeout parses StorageTimeoutRaw. Load has already validated it; returns 3s if unparsable.
func (c *Config) StorageTimeout() time.Duration {
	d, err := time.ParseDuration(c.StorageTimeoutRaw)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the conversation event stream.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
