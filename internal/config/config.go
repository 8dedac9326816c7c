package config

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary  Primary        `koanf:"primary"`
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Stripe   StripeConfig   `koanf:"stripe"`
	Local    LocalConfig    `koanf:"local"`
	CRM      CRMConfig      `koanf:"crm"`
	Social   SocialConfig   `koanf:"social"`
	Retry    RetryConfig    `koanf:"retry"`
	Logger   LoggerConfig   `koanf:"logger"`
	Worker   WorkerConfig   `koanf:"worker"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// IsProduction gates the simulated-session fallback: authentication failures
// must propagate in production, never silently simulate.
func (p Primary) IsProduction() bool {
	return p.Env == "production"
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// StripeConfig holds the external provider credentials. WebhookSecret signs
// inbound events; APIKey authenticates outbound calls. Neither is ever
// logged or echoed.
type StripeConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"required"`
	APIKey        string        `koanf:"api_key"`
	WebhookSecret string        `koanf:"webhook_secret"`
	ConnTimeout   time.Duration `koanf:"conn_timeout" validate:"required"`
	SuccessURL    string        `koanf:"success_url" validate:"required"`
	CancelURL     string        `koanf:"cancel_url" validate:"required"`
}

// LocalConfig drives the offline provider used for internal/manual flows.
type LocalConfig struct {
	WebhookSecret string `koanf:"webhook_secret" validate:"required"`
	PayURLBase    string `koanf:"pay_url_base" validate:"required"`
}

// CRMConfig covers the hex-HMAC signed integration webhook.
type CRMConfig struct {
	WebhookSecret string `koanf:"webhook_secret"`
}

// SocialConfig covers the integration provider without native signing: a
// plain shared-secret header plus the GET subscription handshake token.
type SocialConfig struct {
	SharedSecret string `koanf:"shared_secret"`
	VerifyToken  string `koanf:"verify_token"`
}

type RetryConfig struct {
	BaseInterval time.Duration `koanf:"base_interval" validate:"required"`
	Multiplier   float64       `koanf:"multiplier" validate:"required"`
	MaxInterval  time.Duration `koanf:"max_interval" validate:"required"`
	MaxAttempts  int           `koanf:"max_attempts" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

type WorkerConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
	// StaleAfter is how long a pending payment may sit before the sync
	// sweep reconciles it against the provider.
	StaleAfter time.Duration `koanf:"stale_after" validate:"required"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("PAYMENTS_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "PAYMENTS_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	// Provider credentials may be blank outside production (the simulated
	// checkout path covers offline dev), never in production.
	if mainConfig.Primary.IsProduction() {
		if mainConfig.Stripe.APIKey == "" || mainConfig.Stripe.WebhookSecret == "" {
			logger.Error("stripe credentials are required in production")
			return nil, errors.New("stripe api_key and webhook_secret are required in production")
		}
	}

	return mainConfig, nil
}

// NewLogger builds the process logger from the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
