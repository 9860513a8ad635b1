// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// SigningAlg selects the access-token signature algorithm: HS256, RS256, or ES256.
	SigningAlg string `mapstructure:"AUTH_SIGNING_ALG"`
	// SigningKey is the HS256 secret (min 32 bytes). Required when SigningAlg is HS256.
	SigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	// PrivateKey is the PEM-encoded private key or a path to one. Required for RS256/ES256.
	PrivateKey string `mapstructure:"AUTH_PRIVATE_KEY"`
	// PublicKey is the PEM-encoded public key or a path to one. Required for RS256/ES256.
	PublicKey string `mapstructure:"AUTH_PUBLIC_KEY"`
	// DigestKey keys the HMAC digest of refresh secrets (min 32 bytes). Required.
	DigestKey string `mapstructure:"AUTH_DIGEST_KEY"`
	// Issuer is the iss claim on access tokens.
	Issuer string `mapstructure:"AUTH_ISSUER"`
	// Audience is the aud claim on access tokens.
	Audience string `mapstructure:"AUTH_AUDIENCE"`
	// AccessTTLRaw is the access-token lifetime (e.g. "30m").
	AccessTTLRaw string `mapstructure:"ACCESS_TTL"`
	// RefreshTTLRaw is the refresh-session lifetime (e.g. "168h").
	RefreshTTLRaw string `mapstructure:"REFRESH_TTL"`
	// MaxSessionsPerSubject caps concurrently live sessions per subject;
	// the oldest live session is revoked when the cap is reached.
	MaxSessionsPerSubject int `mapstructure:"MAX_SESSIONS_PER_SUBJECT"`
	// ReuseWindowRaw bounds how long a retired refresh secret is treated as theft
	// evidence when presented again (e.g. "24h").
	ReuseWindowRaw string `mapstructure:"REUSE_DETECTION_WINDOW"`
	// RotationMaxDepth is the hard ceiling on rotation-chain depth before a
	// fresh session is forced.
	RotationMaxDepth int `mapstructure:"ROTATION_CHAIN_MAX_DEPTH"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// CookieSecure sets the Secure flag on the refresh cookie. Must be true
	// outside development.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// SessionRetentionRaw is how long revoked sessions are kept before the
	// sweeper deletes them (e.g. "2160h").
	SessionRetentionRaw string `mapstructure:"SESSION_RETENTION"`
	// SweepIntervalRaw is how often the sweeper runs (e.g. "1h").
	SweepIntervalRaw string `mapstructure:"SWEEP_INTERVAL"`
	// LoginRatePerMinute bounds login attempts per client per minute; 0 disables.
	LoginRatePerMinute int `mapstructure:"LOGIN_RATE_PER_MINUTE"`
	// RefreshRatePerMinute bounds refresh attempts per client per minute; 0 disables.
	RefreshRatePerMinute int `mapstructure:"REFRESH_RATE_PER_MINUTE"`

	// Security events (optional). When Kafka brokers are set, events are
	// mirrored to Kafka in addition to the security_events table.
	// KafkaBrokers is a comma-separated list of broker addresses.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SecurityEventTopic is the Kafka topic for security events.
	SecurityEventTopic string `mapstructure:"SECURITY_EVENT_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required
// fields are invalid; missing signing or digest key material is an error so startup fails
// before serving traffic.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTH_SIGNING_ALG", "HS256")
	v.SetDefault("AUTH_SIGNING_KEY", "")
	v.SetDefault("AUTH_PRIVATE_KEY", "")
	v.SetDefault("AUTH_PUBLIC_KEY", "")
	v.SetDefault("AUTH_DIGEST_KEY", "")
	v.SetDefault("AUTH_ISSUER", "authcore")
	v.SetDefault("AUTH_AUDIENCE", "modelplane-api")
	v.SetDefault("ACCESS_TTL", "30m")
	v.SetDefault("REFRESH_TTL", "168h") // 7d
	v.SetDefault("MAX_SESSIONS_PER_SUBJECT", 10)
	v.SetDefault("REUSE_DETECTION_WINDOW", "24h")
	v.SetDefault("ROTATION_CHAIN_MAX_DEPTH", 1000)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("SESSION_RETENTION", "2160h") // 90d
	v.SetDefault("SWEEP_INTERVAL", "1h")
	v.SetDefault("LOGIN_RATE_PER_MINUTE", 10)
	v.SetDefault("REFRESH_RATE_PER_MINUTE", 30)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_EVENT_TOPIC", "authcore-security-events")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.SigningAlg {
	case "HS256":
		if len(cfg.SigningKey) < 32 {
			return nil, errors.New("config: AUTH_SIGNING_KEY must be set (min 32 bytes) when AUTH_SIGNING_ALG=HS256")
		}
	case "RS256", "ES256":
		if cfg.PrivateKey == "" || cfg.PublicKey == "" {
			return nil, fmt.Errorf("config: AUTH_PRIVATE_KEY and AUTH_PUBLIC_KEY must be set when AUTH_SIGNING_ALG=%s", cfg.SigningAlg)
		}
	default:
		return nil, fmt.Errorf("config: AUTH_SIGNING_ALG must be HS256, RS256, or ES256, got %q", cfg.SigningAlg)
	}

	if len(cfg.DigestKey) < 32 {
		return nil, errors.New("config: AUTH_DIGEST_KEY must be set (min 32 bytes)")
	}

	if !cfg.CookieSecure && cfg.Env == "production" {
		return nil, errors.New("config: COOKIE_SECURE must not be false when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.MaxSessionsPerSubject < 1 {
		return nil, errors.New("config: MAX_SESSIONS_PER_SUBJECT must be at least 1")
	}
	if cfg.RotationMaxDepth < 1 {
		return nil, errors.New("config: ROTATION_CHAIN_MAX_DEPTH must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses ACCESS_TTL as a time.Duration. Returns 30m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTTLRaw)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// RefreshTTL parses REFRESH_TTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTTLRaw)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// ReuseWindow parses REUSE_DETECTION_WINDOW as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) ReuseWindow() time.Duration {
	d, err := time.ParseDuration(c.ReuseWindowRaw)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// SessionRetention parses SESSION_RETENTION as a time.Duration. Returns 2160h if unset or invalid.
func (c *Config) SessionRetention() time.Duration {
	d, err := time.ParseDuration(c.SessionRetentionRaw)
	if err != nil || d <= 0 {
		return 2160 * time.Hour
	}
	return d
}

// SweepInterval parses SWEEP_INTERVAL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.SweepIntervalRaw)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka event sink is enabled (non-empty list) and to create the producer.
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
