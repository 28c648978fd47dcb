package config

import (
	"fmt"
	"github.com/joho/godotenv"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode string // Set via flag, not env

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string

	// Server
	ApiPort        string
	ServiceApiPort string

	// Contact reveal
	RevealTokenCost    int
	RevealMinInterval  time.Duration
	RevealWindowLimit  int
	RevealWindow       time.Duration
	RevealDailyLimit   int
	SignupTokenGrant   int
	DefaultCountryCode string
	LocalNumberDigits  int

	// WhatsApp verification
	VerificationCodeTTL     time.Duration
	VerificationResendWait  time.Duration
	VerificationHourlyLimit int
	VerificationMaxAttempts int

	// Demand hygiene
	DemandMaxAge time.Duration

	// Search
	DefaultPageSize int
	MaxPageSize     int
	CatalogCacheTTL time.Duration

	// AWS S3
	AwsAccessKeyID      string
	AwsSecretAccessKey  string
	AwsRegion           string
	AwsS3Bucket         string
	ImageBaseS3URL      string
	ImageMaxDimension   int
	ImageMaxSizeMB      int
	MaxPhotosPerListing int

	// App Defaults
	AppName string

	// Rate Limiting Defaults
	RateLimitSoftBucketSize int
	RateLimitSoftRefillRate int // tokens per second
	RateLimitHardBucketSize int
	RateLimitHardRefillRate int // tokens per second
}

// Load configuration from environment variables.
// RunMode needs to be passed in as it comes from command-line flags.
func Load(runMode string) (*Config, error) {
	// Load .env file, ignoring errors if it doesn't exist
	godotenv.Load()

	cfg := &Config{
		RunMode: runMode, // Set from flag
	}

	var err error

	// Helper function to get env var or default
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}

	// Helper function to get required env var
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}

	// Load basic string values
	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "8081")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.ImageBaseS3URL = getEnv("IMAGE_BASE_S3_URL", "")
	cfg.AppName = getEnv("APP_NAME", "RepuestoSV")
	cfg.DefaultCountryCode = getEnv("DEFAULT_COUNTRY_CODE", "+503")

	// Load numeric and time duration values with defaults and parsing
	cfg.RedisDB, err = strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg.LocalNumberDigits, err = strconv.Atoi(getEnv("LOCAL_NUMBER_DIGITS", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCAL_NUMBER_DIGITS: %w", err)
	}

	cfg.RevealTokenCost, err = strconv.Atoi(getEnv("REVEAL_TOKEN_COST", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVEAL_TOKEN_COST: %w", err)
	}

	revealMinIntervalMs, err := strconv.ParseInt(getEnv("REVEAL_MIN_INTERVAL_MS", "2000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REVEAL_MIN_INTERVAL_MS: %w", err)
	}
	cfg.RevealMinInterval = time.Duration(revealMinIntervalMs) * time.Millisecond

	cfg.RevealWindowLimit, err = strconv.Atoi(getEnv("REVEAL_WINDOW_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVEAL_WINDOW_LIMIT: %w", err)
	}

	revealWindowSeconds, err := strconv.ParseInt(getEnv("REVEAL_WINDOW_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REVEAL_WINDOW_SECONDS: %w", err)
	}
	cfg.RevealWindow = time.Duration(revealWindowSeconds) * time.Second

	cfg.RevealDailyLimit, err = strconv.Atoi(getEnv("REVEAL_DAILY_LIMIT", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid REVEAL_DAILY_LIMIT: %w", err)
	}

	cfg.SignupTokenGrant, err = strconv.Atoi(getEnv("SIGNUP_TOKEN_GRANT", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid SIGNUP_TOKEN_GRANT: %w", err)
	}

	verificationTTLSeconds, err := strconv.ParseInt(getEnv("VERIFICATION_CODE_TTL_SECONDS", "600"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_CODE_TTL_SECONDS: %w", err)
	}
	cfg.VerificationCodeTTL = time.Duration(verificationTTLSeconds) * time.Second

	verificationResendSeconds, err := strconv.ParseInt(getEnv("VERIFICATION_RESEND_WAIT_SECONDS", "60"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_RESEND_WAIT_SECONDS: %w", err)
	}
	cfg.VerificationResendWait = time.Duration(verificationResendSeconds) * time.Second

	cfg.VerificationHourlyLimit, err = strconv.Atoi(getEnv("VERIFICATION_HOURLY_LIMIT", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_HOURLY_LIMIT: %w", err)
	}

	cfg.VerificationMaxAttempts, err = strconv.Atoi(getEnv("VERIFICATION_MAX_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid VERIFICATION_MAX_ATTEMPTS: %w", err)
	}

	demandMaxAgeDays, err := strconv.ParseInt(getEnv("DEMAND_MAX_AGE_DAYS", "90"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEMAND_MAX_AGE_DAYS: %w", err)
	}
	cfg.DemandMaxAge = time.Duration(demandMaxAgeDays) * 24 * time.Hour

	cfg.DefaultPageSize, err = strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "20"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_PAGE_SIZE: %w", err)
	}

	cfg.MaxPageSize, err = strconv.Atoi(getEnv("MAX_PAGE_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PAGE_SIZE: %w", err)
	}

	catalogCacheTTLSeconds, err := strconv.ParseInt(getEnv("CATALOG_CACHE_TTL_SECONDS", "300"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid CATALOG_CACHE_TTL_SECONDS: %w", err)
	}
	cfg.CatalogCacheTTL = time.Duration(catalogCacheTTLSeconds) * time.Second

	cfg.ImageMaxDimension, err = strconv.Atoi(getEnv("IMAGE_MAX_DIMENSION", "2048"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_DIMENSION: %w", err)
	}

	cfg.ImageMaxSizeMB, err = strconv.Atoi(getEnv("IMAGE_MAX_SIZE_MB", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid IMAGE_MAX_SIZE_MB: %w", err)
	}

	cfg.MaxPhotosPerListing, err = strconv.Atoi(getEnv("MAX_PHOTOS_PER_LISTING", "6"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PHOTOS_PER_LISTING: %w", err)
	}

	// Rate Limiting
	cfg.RateLimitSoftBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_BUCKET_SIZE", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitSoftRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_SOFT_REFILL_RATE", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_SOFT_REFILL_RATE: %w", err)
	}
	cfg.RateLimitHardBucketSize, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_BUCKET_SIZE", "8"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_BUCKET_SIZE: %w", err)
	}
	cfg.RateLimitHardRefillRate, err = strconv.Atoi(getEnv("RATE_LIMIT_HARD_REFILL_RATE", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_HARD_REFILL_RATE: %w", err)
	}

	return cfg, nil
}
