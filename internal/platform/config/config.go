package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/SscSPs/money_oxr/internal/core/domain"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Cache backends selectable with OXR_CACHE_BACKEND.
const (
	CacheBackendNone     = "none"
	CacheBackendFile     = "file"
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
)

// Config holds application configuration.
type Config struct {
	Port         string `validate:"required,numeric"`
	IsProduction bool
	JWTSecret    string // empty disables bearer auth
	DatabaseURL  string

	// Rates provider
	OXRAppID       string
	SourceCurrency string `validate:"required,len=3,alpha,uppercase"`
	CacheBackend   string `validate:"oneof=none file redis postgres"`
	CachePath      string
	MaxAge         *time.Duration       // nil: rates never go stale
	OnAPIFailure   domain.FailurePolicy `validate:"oneof=warn error"`
	HTTPTimeout    time.Duration        `validate:"gt=0"`

	// Redis cache backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	// HTTP surface
	RateLimit          string `validate:"required"`
	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("OXR_APP_ID", "")
	viper.SetDefault("OXR_SOURCE_CURRENCY", "USD")
	viper.SetDefault("OXR_CACHE_BACKEND", "")
	viper.SetDefault("OXR_CACHE_PATH", "")
	viper.SetDefault("OXR_MAX_AGE", "")
	viper.SetDefault("OXR_ON_API_FAILURE", string(domain.FailurePolicyWarn))
	viper.SetDefault("OXR_HTTP_TIMEOUT", "10s")
	viper.SetDefault("REDIS_ADDR", "")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RATE_LIMIT", "60-M")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	viper.AutomaticEnv()

	cfg := &Config{
		Port:           viper.GetString("PORT"),
		IsProduction:   viper.GetBool("IS_PRODUCTION"),
		JWTSecret:      viper.GetString("JWT_SECRET"),
		DatabaseURL:    viper.GetString("PGSQL_URL"),
		OXRAppID:       viper.GetString("OXR_APP_ID"),
		SourceCurrency: strings.ToUpper(strings.TrimSpace(viper.GetString("OXR_SOURCE_CURRENCY"))),
		CacheBackend:   strings.ToLower(strings.TrimSpace(viper.GetString("OXR_CACHE_BACKEND"))),
		CachePath:      viper.GetString("OXR_CACHE_PATH"),
		OnAPIFailure:   domain.FailurePolicy(strings.ToLower(viper.GetString("OXR_ON_API_FAILURE"))),
		RedisAddr:      viper.GetString("REDIS_ADDR"),
		RedisPassword:  viper.GetString("REDIS_PASSWORD"),
		RedisDB:        viper.GetInt("REDIS_DB"),
		RateLimit:      viper.GetString("RATE_LIMIT"),
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	if cfg.OXRAppID == "" {
		log.Println("Warning: OXR_APP_ID not set. Rates will only be served from the cache.")
	}
	if cfg.JWTSecret == "" {
		log.Println("Warning: JWT_SECRET not set. The rates API is public.")
	}

	// Default the backend from what is configured
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = CacheBackendNone
		if cfg.CachePath != "" {
			cfg.CacheBackend = CacheBackendFile
		}
	}

	maxAge, err := parseMaxAge(viper.GetString("OXR_MAX_AGE"))
	if err != nil {
		return nil, err
	}
	cfg.MaxAge = maxAge

	httpTimeoutStr := viper.GetString("OXR_HTTP_TIMEOUT")
	httpTimeout, err := time.ParseDuration(httpTimeoutStr)
	if err != nil || httpTimeout <= 0 {
		httpTimeout = 10 * time.Second
		log.Printf("Warning: Invalid value for OXR_HTTP_TIMEOUT ('%s'). Defaulting to %s.\n", httpTimeoutStr, httpTimeout.String())
	}
	cfg.HTTPTimeout = httpTimeout

	for _, origin := range strings.Split(viper.GetString("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, origin)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseMaxAge accepts a Go duration ("1h") or whole seconds ("3600").
// An empty value means rates never go stale.
func parseMaxAge(raw string) (*time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		d := time.Duration(secs) * time.Second
		if d < 0 {
			return nil, fmt.Errorf("invalid OXR_MAX_AGE %q: must not be negative", raw)
		}
		return &d, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid OXR_MAX_AGE %q: %w", raw, err)
	}
	if d < 0 {
		return nil, fmt.Errorf("invalid OXR_MAX_AGE %q: must not be negative", raw)
	}
	return &d, nil
}

// Validate checks field constraints and backend requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch c.CacheBackend {
	case CacheBackendFile:
		if c.CachePath == "" {
			return fmt.Errorf("invalid configuration: OXR_CACHE_PATH is required for the file cache backend")
		}
	case CacheBackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("invalid configuration: REDIS_ADDR is required for the redis cache backend")
		}
	case CacheBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("invalid configuration: PGSQL_URL is required for the postgres cache backend")
		}
	}
	return nil
}
