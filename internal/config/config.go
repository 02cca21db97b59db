package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API and supporting services.
type Config struct {
	Environment    string
	HTTPListenAddr string
	MySQLDSN       string
	RedisURL       string

	JWTSecret          string
	JWTExpirationHours int
	BcryptCost         int

	// Token ledger
	TokenUsesPerPurchase int
	TokenValidityDays    int // 0 = tokens never expire

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	PaymentCurrency     string

	// External generation API
	ImageGenAPIKey  string
	ImageGenBaseURL string
	RequestTimeout  time.Duration

	// Watermarking
	WatermarkLogoPath      string
	WatermarkLogoSizePct   float64
	WatermarkPadding       int
	WatermarkOpacity       int
	WatermarkAddBackground bool
	WatermarkTileText      string
	WatermarkTileSpacing   int

	// Rate limiting and abuse guard
	RateLimitPerMinute int
	RateLimitBurst     int
	AbuseMaxFailures   int
	AbuseBlockDuration time.Duration

	// S3
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// IsProduction reports whether the service runs with production hardening.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Environment:            getEnv("ENVIRONMENT", "development"),
		HTTPListenAddr:         getEnv("HTTP_LISTEN_ADDR", ":8000"),
		RedisURL:               getEnv("REDIS_URL", ""),
		JWTExpirationHours:     getInt("JWT_EXPIRATION_HOURS", 24),
		BcryptCost:             getInt("BCRYPT_COST", 12),
		TokenUsesPerPurchase:   getInt("TOKEN_USES_PER_PURCHASE", 2),
		TokenValidityDays:      getInt("TOKEN_VALIDITY_DAYS", 0),
		CheckoutSuccessURL:     getEnv("CHECKOUT_SUCCESS_URL", ""),
		CheckoutCancelURL:      getEnv("CHECKOUT_CANCEL_URL", ""),
		PaymentCurrency:        getEnv("PAYMENT_CURRENCY", "inr"),
		ImageGenBaseURL:        getEnv("IMAGEGEN_BASE_URL", "https://api.kie.ai"),
		RequestTimeout:         time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 120)),
		WatermarkLogoPath:      getEnv("WATERMARK_LOGO_PATH", "assets/logo.png"),
		WatermarkLogoSizePct:   getFloat("WATERMARK_LOGO_SIZE_PERCENT", 0.05),
		WatermarkPadding:       getInt("WATERMARK_PADDING", 25),
		WatermarkOpacity:       getInt("WATERMARK_OPACITY", 200),
		WatermarkAddBackground: getBool("WATERMARK_ADD_BACKGROUND", false),
		WatermarkTileText:      getEnv("WATERMARK_TILE_TEXT", "FREE VERSION"),
		WatermarkTileSpacing:   getInt("WATERMARK_TILE_SPACING", 200),
		RateLimitPerMinute:     getInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:         getInt("RATE_LIMIT_BURST", 20),
		AbuseMaxFailures:       getInt("ABUSE_MAX_FAILURES", 10),
		AbuseBlockDuration:     time.Second * time.Duration(getInt("ABUSE_BLOCK_SECONDS", 3600)),
		S3Endpoint:             getEnv("S3_ENDPOINT", ""),
		S3Region:               os.Getenv("S3_REGION"),
		S3AccessKey:            os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:            os.Getenv("S3_SECRET_KEY"),
		S3Bucket:               os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:        os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:         getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:               getEnv("S3_PREFIX", "generated"),
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.ImageGenAPIKey = os.Getenv("IMAGEGEN_API_KEY")

	var missing []string
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if cfg.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if cfg.ImageGenAPIKey == "" {
		missing = append(missing, "IMAGEGEN_API_KEY")
	}
	if cfg.S3Region == "" {
		missing = append(missing, "S3_REGION")
	}
	if cfg.S3AccessKey == "" {
		missing = append(missing, "S3_ACCESS_KEY")
	}
	if cfg.S3SecretKey == "" {
		missing = append(missing, "S3_SECRET_KEY")
	}
	if cfg.S3Bucket == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if cfg.S3PublicBaseURL == "" {
		missing = append(missing, "S3_PUBLIC_BASE_URL")
	}
	if cfg.TokenUsesPerPurchase < 1 {
		cfg.TokenUsesPerPurchase = 1
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	// Running purely off process env is fine in containers.
	return nil
}
