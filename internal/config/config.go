package config

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/tharunsai190/classy-commerce-storefront/internal/pricing"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DB DB

	OrderMaxAttempts int           `envconfig:"ORDER_MAX_ATTEMPTS" default:"3"`
	OrderTimeout     time.Duration `envconfig:"ORDER_TIMEOUT" default:"5s"`

	KafkaBrokers   string        `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic     string        `envconfig:"KAFKA_TOPIC" default:"storefront.orders"`
	OutboxInterval time.Duration `envconfig:"OUTBOX_INTERVAL" default:"1s"`
	OutboxBatch    int           `envconfig:"OUTBOX_BATCH" default:"100"`

	ShippingFee      string `envconfig:"SHIPPING_FEE" default:"5.99"`
	FreeShippingOver string `envconfig:"FREE_SHIPPING_OVER" default:"50"`
	TaxRate          string `envconfig:"TAX_RATE" default:"0.07"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
}

// DB reads the BLUEPRINT_DB_* variables used by existing deployments.
type DB struct {
	Host         string `envconfig:"BLUEPRINT_DB_HOST" default:"localhost"`
	Port         string `envconfig:"BLUEPRINT_DB_PORT" default:"5432"`
	Username     string `envconfig:"BLUEPRINT_DB_USERNAME" default:"postgres"`
	Password     string `envconfig:"BLUEPRINT_DB_PASSWORD" default:"postgres"`
	Database     string `envconfig:"BLUEPRINT_DB_DATABASE" default:"storefront"`
	Schema       string `envconfig:"BLUEPRINT_DB_SCHEMA" default:"public"`
	MaxOpenConns int    `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns int    `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
}

func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.OrderMaxAttempts < 1 {
		return nil, fmt.Errorf("ORDER_MAX_ATTEMPTS must be at least 1, got %d", cfg.OrderMaxAttempts)
	}
	for _, v := range []string{cfg.ShippingFee, cfg.FreeShippingOver, cfg.TaxRate} {
		if _, err := decimal.NewFromString(v); err != nil {
			return nil, fmt.Errorf("invalid pricing rate %q: %w", v, err)
		}
	}
	return &cfg, nil
}

func (c *Config) Brokers() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Rates parses the checkout quote settings. Load has already validated them.
func (c *Config) Rates() pricing.Rates {
	return pricing.Rates{
		FreeShippingOver: decimal.RequireFromString(c.FreeShippingOver),
		ShippingFee:      decimal.RequireFromString(c.ShippingFee),
		TaxRate:          decimal.RequireFromString(c.TaxRate),
	}
}
