// Package config loads process settings from STOREFRONT_* environment variables.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cicadacove/storefront/internal/payment"
	"github.com/cicadacove/storefront/internal/pricing"
	"github.com/cicadacove/storefront/internal/repository"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const Prefix = "STOREFRONT"

const (
	ProviderStripe  = "stripe"
	ProviderSandbox = "sandbox"
)

type Config struct {
	HTTPPort        int           `envconfig:"HTTP_PORT" default:"8080"`
	GRPCPort        int           `envconfig:"GRPC_PORT" default:"9090"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	DBDriver         string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost           string `envconfig:"DB_HOST" default:"localhost"`
	DBPort           int    `envconfig:"DB_PORT" default:"5432"`
	DBUser           string `envconfig:"DB_USER" default:"storefront"`
	DBPassword       string `envconfig:"DB_PASSWORD"`
	DBName           string `envconfig:"DB_NAME" default:"storefront"`
	DBSSLMode        string `envconfig:"DB_SSLMODE" default:"disable"`
	DBPath           string `envconfig:"DB_PATH" default:"storefront.db"`
	DBMigrationsPath string `envconfig:"DB_MIGRATIONS_PATH" default:"internal/repository/migrations"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	MongoURI string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB  string `envconfig:"MONGO_DB" default:"storefront"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"order-events"`

	PaymentProvider     string `envconfig:"PAYMENT_PROVIDER" default:"sandbox"`
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET" default:"whsec_sandbox"`

	AppURL string `envconfig:"APP_URL" default:"http://localhost:3000"`

	FreeShippingThreshold string `envconfig:"FREE_SHIPPING_THRESHOLD" default:"500"`
	TaxRate               string `envconfig:"TAX_RATE" default:"0.08"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// OTLPEndpoint is the collector spans are exported to. Empty keeps spans local.
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
}

func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case repository.DriverPostgres, repository.DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.PaymentProvider {
	case ProviderSandbox:
	case ProviderStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required for the stripe provider")
		}
	default:
		return fmt.Errorf("unsupported PAYMENT_PROVIDER %q", c.PaymentProvider)
	}
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if u, err := url.Parse(c.AppURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid APP_URL %q", c.AppURL)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Credentials() *repository.Credentials {
	return &repository.Credentials{
		Driver:            c.DBDriver,
		Host:              c.DBHost,
		Port:              c.DBPort,
		User:              c.DBUser,
		Password:          c.DBPassword,
		DBName:            c.DBName,
		SSLMode:           c.DBSSLMode,
		Path:              c.DBPath,
		MigrationsDirPath: c.DBMigrationsPath,
	}
}

// Policy applies the threshold and tax overrides to the default pricing rules.
func (c *Config) Policy() (pricing.Policy, error) {
	p := pricing.DefaultPolicy()

	threshold, err := decimal.NewFromString(c.FreeShippingThreshold)
	if err != nil || threshold.IsNegative() {
		return p, fmt.Errorf("invalid FREE_SHIPPING_THRESHOLD %q", c.FreeShippingThreshold)
	}
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil || rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return p, fmt.Errorf("invalid TAX_RATE %q", c.TaxRate)
	}

	p.FreeShippingThreshold = threshold
	p.TaxRate = rate
	return p, nil
}

// SecureCookies reports whether the storefront is served over TLS.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.AppURL, "https://")
}

// Breaker returns the circuit breaker settings for the configured provider.
func (c *Config) Breaker() payment.BreakerSettings {
	s := payment.DefaultBreakerSettings()
	s.Name = c.PaymentProvider
	return s
}
