package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/pkg/authz"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payment  PaymentConfig
	Payroll  PayrollConfig
	Authz    AuthzConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// PaymentConfig configures the disbursement gateway.
type PaymentConfig struct {
	BaseURL        string
	APIKey         string
	Currency       string
	Timeout        time.Duration
	MaxConcurrency int
}

type PayrollConfig struct {
	ReprocessPolicy        payroll.ReprocessPolicy
	UnmatchedBracketPolicy payroll.UnmatchedBracketPolicy
}

type AuthzConfig struct {
	Mode authz.Mode
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.Atoi(getEnv("DB_MIN_CONNS", "2"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "staffma"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Payment gateway configuration
	paymentTimeout, err := time.ParseDuration(getEnv("PAYMENT_GATEWAY_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_GATEWAY_TIMEOUT: %w", err)
	}
	paymentConcurrency, err := strconv.Atoi(getEnv("PAYMENT_MAX_CONCURRENCY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYMENT_MAX_CONCURRENCY: %w", err)
	}

	config.Payment = PaymentConfig{
		BaseURL:        getEnv("PAYMENT_GATEWAY_URL", ""),
		APIKey:         getEnv("PAYMENT_GATEWAY_API_KEY", ""),
		Currency:       getEnv("PAYMENT_CURRENCY", "KES"),
		Timeout:        paymentTimeout,
		MaxConcurrency: paymentConcurrency,
	}

	// Payroll policy
	config.Payroll = PayrollConfig{
		ReprocessPolicy:        payroll.ReprocessPolicy(strings.ToLower(getEnv("PAYROLL_REPROCESS_POLICY", string(payroll.ReprocessOverwrite)))),
		UnmatchedBracketPolicy: payroll.UnmatchedBracketPolicy(strings.ToLower(getEnv("PAYROLL_UNMATCHED_BRACKET_POLICY", string(payroll.UnmatchedBracketZero)))),
	}

	authzMode, err := authz.ParseMode(getEnv("AUTHZ_MODE", string(authz.ModeEnforce)))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTHZ_MODE: %w", err)
	}
	config.Authz = AuthzConfig{Mode: authzMode}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("invalid JWT_ACCESS_EXPIRATION_TIME: %w", err)
	}
	if c.Payment.BaseURL == "" {
		return fmt.Errorf("PAYMENT_GATEWAY_URL is required")
	}
	if c.Payment.APIKey == "" {
		return fmt.Errorf("PAYMENT_GATEWAY_API_KEY is required")
	}
	if c.Payment.MaxConcurrency < 1 {
		return fmt.Errorf("PAYMENT_MAX_CONCURRENCY must be at least 1")
	}

	switch c.Payroll.ReprocessPolicy {
	case payroll.ReprocessOverwrite, payroll.ReprocessReject:
	default:
		return fmt.Errorf("PAYROLL_REPROCESS_POLICY must be overwrite or reject, got %q", c.Payroll.ReprocessPolicy)
	}
	switch c.Payroll.UnmatchedBracketPolicy {
	case payroll.UnmatchedBracketZero, payroll.UnmatchedBracketReject:
	default:
		return fmt.Errorf("PAYROLL_UNMATCHED_BRACKET_POLICY must be zero or reject, got %q", c.Payroll.UnmatchedBracketPolicy)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Policy returns the payroll policy selected by configuration.
func (c *Config) Policy() payroll.Policy {
	return payroll.Policy{
		Reprocess:        c.Payroll.ReprocessPolicy,
		UnmatchedBracket: c.Payroll.UnmatchedBracketPolicy,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string, fallback []string) []string {
	value := getEnv(env, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
