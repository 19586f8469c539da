package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "chargeshare/backend/libs/config"
)

// Config defines charging service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Payments PaymentsConfig `yaml:"payments"`
	Push     PushConfig     `yaml:"push"`
	Fees     FeesConfig     `yaml:"fees"`
	Requests RequestsConfig `yaml:"requests"`
	WS       WSConfig       `yaml:"ws"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port" env:"CHARGING_HTTP_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"CHARGING_HTTP_SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	DSN     string `yaml:"dsn" env:"CHARGING_POSTGRES_DSN"`
	Migrate bool   `yaml:"migrate" env:"CHARGING_POSTGRES_MIGRATE"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"CHARGING_REDIS_ADDR"`
	Password string        `yaml:"password" env:"CHARGING_REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"CHARGING_REDIS_DB"`
	PoolSize int           `yaml:"poolSize" env:"CHARGING_REDIS_POOL_SIZE"`
	TTL      time.Duration `yaml:"ttl" env:"CHARGING_REDIS_TTL"`
	// CallbackTTL bounds how long a processed gateway transaction id is remembered.
	CallbackTTL time.Duration `yaml:"callbackTtl" env:"CHARGING_REDIS_CALLBACK_TTL"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"JWT_SECRET"`
}

type PaymentsConfig struct {
	BaseURL           string        `yaml:"baseUrl" env:"PAYMENT_GATEWAY_BASE_URL"`
	APIKey            string        `yaml:"apiKey" env:"PAYMENT_GATEWAY_API_KEY"`
	HMACSecret        string        `yaml:"hmacSecret" env:"PAYMENT_GATEWAY_HMAC_SECRET"`
	CardIntegration   int           `yaml:"cardIntegrationId" env:"PAYMENT_GATEWAY_CARD_INTEGRATION_ID"`
	WalletIntegration int           `yaml:"walletIntegrationId" env:"PAYMENT_GATEWAY_WALLET_INTEGRATION_ID"`
	IFrameURL         string        `yaml:"iframeUrl" env:"PAYMENT_GATEWAY_IFRAME_URL"`
	Currency          string        `yaml:"currency" env:"PAYMENT_CURRENCY"`
	Timeout           time.Duration `yaml:"timeout" env:"PAYMENT_GATEWAY_TIMEOUT"`
	Mock              bool          `yaml:"mock" env:"PAYMENT_GATEWAY_MOCK"`
}

type PushConfig struct {
	URL       string `yaml:"url" env:"PUSH_GATEWAY_URL"`
	ServerKey string `yaml:"serverKey" env:"PUSH_SERVER_KEY"`
}

type FeesConfig struct {
	MinimumFee float64 `yaml:"minimumFee" env:"FEES_MINIMUM"`
	Percentage float64 `yaml:"percentage" env:"FEES_PERCENTAGE"`
}

type RequestsConfig struct {
	PendingTTL time.Duration `yaml:"pendingTtl" env:"CHARGING_PENDING_TTL"`
}

type WSConfig struct {
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"WS_WRITE_TIMEOUT"`
	PingInterval time.Duration `yaml:"pingInterval" env:"WS_PING_INTERVAL"`
	// AllowedOrigins lists browser origins allowed to open /ws; empty allows all.
	AllowedOrigins []string `yaml:"allowedOrigins" env:"WS_ALLOWED_ORIGINS"`
}

func defaults() *Config {
	return &Config{
		HTTP:     HTTPConfig{Port: "8085", ShutdownTimeout: 10 * time.Second},
		Database: DatabaseConfig{Migrate: true},
		Redis:    RedisConfig{Addr: "localhost:6379", TTL: 24 * time.Hour, CallbackTTL: 72 * time.Hour},
		Payments: PaymentsConfig{Currency: "EGP", Timeout: 5 * time.Second},
		Fees:     FeesConfig{MinimumFee: 5, Percentage: 10},
		Requests: RequestsConfig{PendingTTL: 5 * time.Minute},
		WS:       WSConfig{WriteTimeout: 10 * time.Second, PingInterval: 30 * time.Second},
	}
}

// Load reads configuration via shared helper.
func Load() (*Config, error) {
	cfg := defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate is called by the loader once file and env values are applied.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		return errors.New("config: redis addr required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Payments.HMACSecret == "" {
		return errors.New("config: payment hmac secret required")
	}
	if !c.Payments.Mock && (c.Payments.BaseURL == "" || c.Payments.APIKey == "") {
		return errors.New("config: payment gateway base url and api key required unless mock mode is enabled")
	}
	if c.Fees.MinimumFee < 0 || c.Fees.Percentage < 0 || c.Fees.Percentage > 100 {
		return errors.New("config: fees out of range")
	}
	if c.Requests.PendingTTL <= 0 {
		return errors.New("config: pending ttl must be positive")
	}
	return nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8085"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}
