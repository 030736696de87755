// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Port        string `mapstructure:"port"`
	DatabaseURL string `mapstructure:"database_url"`
	CatalogFile string `mapstructure:"catalog_file"`

	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	FCM       FCMConfig       `mapstructure:"fcm"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Paddle    PaddleConfig    `mapstructure:"paddle"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	S3        S3Config        `mapstructure:"s3"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	FilePath   string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// AuthConfig selects how bearer tokens are verified.
// Provider "clerk" verifies Clerk session tokens, "local" verifies HS256 tokens
// issued by /auth/login.
type AuthConfig struct {
	Provider           string        `mapstructure:"provider"`
	ClerkSecretKey     string        `mapstructure:"clerk_secret_key"`
	ClerkWebhookSecret string        `mapstructure:"clerk_webhook_secret"`
	JWTSecret          string        `mapstructure:"jwt_secret"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
}

type MetricsConfig struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
}

type FCMConfig struct {
	ServiceAccountJSON string `mapstructure:"service_account_json"` // base64
	ServiceAccountFile string `mapstructure:"service_account_file"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	PriceIDPro    string `mapstructure:"price_id_pro"`
	PriceIDElite  string `mapstructure:"price_id_elite"`
	SuccessURL    string `mapstructure:"success_url"`
	CancelURL     string `mapstructure:"cancel_url"`
}

type PaddleConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	Sandbox       bool   `mapstructure:"sandbox"`
	PriceIDPro    string `mapstructure:"price_id_pro"`
	PriceIDElite  string `mapstructure:"price_id_elite"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// Enabled reports whether screenshot uploads are configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Load reads .env (if present) and the process environment.
// Nested keys map to upper-case env names joined by underscores,
// e.g. auth.jwt_secret -> AUTH_JWT_SECRET.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}
	// Names kept from the previous deployment layout.
	_ = v.BindEnv("auth.clerk_secret_key", "AUTH_CLERK_SECRET_KEY", "CLERK_SECRET_KEY")
	_ = v.BindEnv("auth.clerk_webhook_secret", "AUTH_CLERK_WEBHOOK_SECRET", "CLERK_WEBHOOK_SECRET")
	_ = v.BindEnv("metrics.password", "METRICS_PASSWORD", "METRICS_PASS")
	_ = v.BindEnv("paddle.webhook_secret", "PADDLE_WEBHOOK_SECRET", "PADDLE_SECRET_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "3333")
	v.SetDefault("database_url", "")
	v.SetDefault("catalog_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)

	v.SetDefault("auth.provider", "clerk")
	v.SetDefault("auth.clerk_secret_key", "")
	v.SetDefault("auth.clerk_webhook_secret", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)

	v.SetDefault("metrics.user", "")
	v.SetDefault("metrics.password", "")

	v.SetDefault("rate_limit.rps", 5.0)
	v.SetDefault("rate_limit.burst", 30)

	v.SetDefault("fcm.service_account_json", "")
	v.SetDefault("fcm.service_account_file", "./serviceAccountKey.json")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.price_id_pro", "")
	v.SetDefault("stripe.price_id_elite", "")
	v.SetDefault("stripe.success_url", "http://localhost:3000/subscription?status=success")
	v.SetDefault("stripe.cancel_url", "http://localhost:3000/subscription?status=cancelled")

	v.SetDefault("paddle.api_key", "")
	v.SetDefault("paddle.webhook_secret", "")
	v.SetDefault("paddle.sandbox", true)
	v.SetDefault("paddle.price_id_pro", "")
	v.SetDefault("paddle.price_id_elite", "")

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.timeout", 30*time.Second)

	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.public_base_url", "")
}

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.Auth.Provider {
	case "clerk":
		if c.Auth.ClerkSecretKey == "" {
			return fmt.Errorf("CLERK_SECRET_KEY is required when AUTH_PROVIDER=clerk")
		}
	case "local":
		if len(c.Auth.JWTSecret) < 16 {
			return fmt.Errorf("AUTH_JWT_SECRET must be at least 16 characters when AUTH_PROVIDER=local")
		}
	default:
		return fmt.Errorf("unknown AUTH_PROVIDER %q", c.Auth.Provider)
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}
