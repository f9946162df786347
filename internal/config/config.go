package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Database DatabaseConfig `envconfig:"DB"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	NewRelic NewRelicConfig `envconfig:"NEW_RELIC"`
	Log      LogConfig      `envconfig:"LOG"`
	Auth     AuthConfig     `envconfig:"JWT"`
	AMQP     AMQPConfig     `envconfig:"AMQP"`
	Gateway  GatewayConfig  `envconfig:"PAYMENT"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `split_words:"true" default:"8080"`
	ReadTimeout    time.Duration `split_words:"true" default:"10s"`
	WriteTimeout   time.Duration `split_words:"true" default:"90s"`
	AllowedOrigins []string      `split_words:"true" default:"http://localhost:3000"`
	BaseURL        string        `split_words:"true" default:"http://localhost:8080"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `default:"localhost"`
	Port            string        `default:"5432"`
	User            string        `default:"postgres"`
	Password        string        `default:"postgres"`
	Name            string        `default:"minibus_db"`
	SSLMode         string        `split_words:"true" default:"disable"`
	MaxOpenConns    int           `split_words:"true" default:"50"`
	MaxIdleConns    int           `split_words:"true" default:"25"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"30m"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string `default:"localhost:6379"`
	Password string
	DB       int `default:"0"`
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string `split_words:"true" default:"minibus-booking-backend"`
	LicenseKey string `split_words:"true"`
	Enabled    bool   `default:"false"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `default:"info"`
	Format string `default:"json"`
}

// AuthConfig holds the shared secret used to verify bearer tokens issued by
// the identity service.
type AuthConfig struct {
	SecretKey string `split_words:"true" default:"jwt-secret-key-change-in-production"`
}

// AMQPConfig holds the event broker configuration. Events stay in-process
// when URL is empty.
type AMQPConfig struct {
	URL string
}

// GatewayConfig holds outbound payment provider configuration.
type GatewayConfig struct {
	Timeout          time.Duration     `default:"30s"`
	FailureThreshold int64             `split_words:"true" default:"5"`
	LockTTL          time.Duration     `split_words:"true" default:"90s"`
	Wave             WaveConfig        `envconfig:"WAVE"`
	OrangeMoney      OrangeMoneyConfig `envconfig:"ORANGE_MONEY"`
	MTNMomo          MTNMomoConfig     `envconfig:"MTN_MOMO"`
}

// WaveConfig holds Wave API credentials.
type WaveConfig struct {
	APIKey      string `split_words:"true"`
	MerchantKey string `split_words:"true"`
	BaseURL     string `split_words:"true" default:"https://api.wave.com/v1"`
}

// OrangeMoneyConfig holds Orange Money web payment credentials.
type OrangeMoneyConfig struct {
	APIKey     string `split_words:"true"`
	MerchantID string `split_words:"true"`
	BaseURL    string `split_words:"true" default:"https://api.orange.com/orange-money-webpay"`
}

// MTNMomoConfig holds MTN Mobile Money collection credentials.
type MTNMomoConfig struct {
	APIKey            string `split_words:"true"`
	SubscriptionKey   string `split_words:"true"`
	BaseURL           string `split_words:"true" default:"https://sandbox.momodeveloper.mtn.com"`
	TargetEnvironment string `split_words:"true" default:"sandbox"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	// An MTN MoMo initiation makes two provider calls under one payment lock.
	if budget := 2 * cfg.Gateway.Timeout; cfg.Gateway.LockTTL <= budget {
		return nil, fmt.Errorf("load config: PAYMENT_LOCK_TTL %s must exceed twice PAYMENT_TIMEOUT (%s)", cfg.Gateway.LockTTL, budget)
	}
	return &cfg, nil
}

// WebhookURL is the callback address handed to payment providers.
func (c *Config) WebhookURL() string {
	return c.Server.BaseURL + "/v1/payments/webhook"
}
