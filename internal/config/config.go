package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Redis configuration (availability cache)
	Redis RedisConfig

	// RabbitMQ configuration (booking notifications)
	RabbitMQ RabbitMQConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Booking rules
	Booking BookingConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error

	EnableRequestLog bool
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RedisConfig holds the availability cache connection. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// RabbitMQConfig holds the notification broker. An empty URL falls back to log-only notifications.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// PaymentConfig selects and configures the card gateway
type PaymentConfig struct {
	Provider string // "payable", "omise" or "none"
	Currency string

	// PAYable IPG
	Environment   string // "sandbox" or "production"
	MerchantKey   string
	MerchantToken string // SECRET - never expose to client
	LogoURL       string
	ReturnURL     string
	WebhookURL    string

	// Omise
	OmisePublicKey string
	OmiseSecretKey string
}

// BookingConfig holds booking policy values
type BookingConfig struct {
	DefaultPriceCents int64
	PendingTTL        time.Duration
	CheckInLead       time.Duration
	CurrencySymbol    string

	// Venue time zone; reservation dates and times are wall-clock values in it
	Location *time.Location
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),

			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			CacheTTL: time.Duration(getEnvAsInt("AVAILABILITY_CACHE_TTL_SECONDS", 60)) * time.Second,
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "court.events"),
		},
		Payment: PaymentConfig{
			Provider:       strings.ToLower(getEnv("PAYMENT_PROVIDER", "none")),
			Currency:       getEnv("PAYMENT_CURRENCY", "USD"),
			Environment:    getEnv("PAYABLE_ENVIRONMENT", "sandbox"),
			MerchantKey:    getEnv("PAYABLE_MERCHANT_KEY", ""),
			MerchantToken:  getEnv("PAYABLE_MERCHANT_TOKEN", ""),
			LogoURL:        getEnv("PAYABLE_LOGO_URL", ""),
			ReturnURL:      getEnv("PAYABLE_RETURN_URL", ""),
			WebhookURL:     getEnv("PAYABLE_WEBHOOK_URL", ""),
			OmisePublicKey: getEnv("OMISE_PUBLIC_KEY", ""),
			OmiseSecretKey: getEnv("OMISE_SECRET_KEY", ""),
		},
		Booking: BookingConfig{
			DefaultPriceCents: int64(getEnvAsInt("DEFAULT_PRICE_CENTS", 5000)),
			PendingTTL:        time.Duration(getEnvAsInt("PENDING_BOOKING_TTL_MINUTES", 30)) * time.Minute,
			CheckInLead:       time.Duration(getEnvAsInt("CHECK_IN_LEAD_MINUTES", 30)) * time.Minute,
			CurrencySymbol:    getEnv("CURRENCY_SYMBOL", "$"),
		},
	}

	loc, err := time.LoadLocation(getEnv("BOOKING_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE: %w", err)
	}
	config.Booking.Location = loc

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Booking.DefaultPriceCents < 0 {
		return fmt.Errorf("DEFAULT_PRICE_CENTS must not be negative")
	}

	switch c.Payment.Provider {
	case "none":
	case "payable":
		if c.Payment.Environment == "production" && (c.Payment.MerchantKey == "" || c.Payment.MerchantToken == "") {
			return fmt.Errorf("PAYABLE_MERCHANT_KEY and PAYABLE_MERCHANT_TOKEN are required in production")
		}
	case "omise":
		if c.Payment.OmisePublicKey == "" || c.Payment.OmiseSecretKey == "" {
			return fmt.Errorf("OMISE_PUBLIC_KEY and OMISE_SECRET_KEY are required for the omise provider")
		}
	default:
		return fmt.Errorf("invalid PAYMENT_PROVIDER: %s (must be 'payable', 'omise' or 'none')", c.Payment.Provider)
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
