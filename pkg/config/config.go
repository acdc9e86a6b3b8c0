package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, empty URL keeps the phase journal in memory)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	Alpaca   AlpacaConfig
	Polygon  PolygonConfig
	Earnings EarningsConfig

	// Trading loop
	Trader TraderConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// AlpacaConfig holds brokerage API configuration
type AlpacaConfig struct {
	KeyID     string
	SecretKey string
	BaseURL   string
	RateLimit int // requests per minute
}

// PolygonConfig holds market data API configuration
type PolygonConfig struct {
	BaseURL   string
	APIKey    string
	RateLimit int // requests per minute
}

// EarningsConfig holds earnings calendar configuration
type EarningsConfig struct {
	BaseURL  string
	PageSize int
}

// TraderConfig holds trading loop configuration
type TraderConfig struct {
	Timezone                string
	PollInterval            time.Duration
	PhasePause              time.Duration // sleep after pre-open and intraday phases
	PhaseWindow             time.Duration // how late a phase may still fire
	MinPrice                float64
	MaxPrice                float64
	SnapshotRefreshSchedule string // cron expression with seconds
	StrategyConfig          string // optional YAML file, see internal/strategyconfig
}

// Location loads the market time zone
func (t TraderConfig) Location() (*time.Location, error) {
	return time.LoadLocation(t.Timezone)
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	alpacaKey := getEnv("APCA_API_KEY_ID", "")

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 5),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		Alpaca: AlpacaConfig{
			KeyID:     alpacaKey,
			SecretKey: getEnv("APCA_API_SECRET_KEY", ""),
			BaseURL:   getEnv("APCA_API_BASE_URL", "https://paper-api.alpaca.markets"),
			RateLimit: getEnvAsInt("ALPACA_RATE_LIMIT", 200),
		},

		Polygon: PolygonConfig{
			BaseURL:   getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
			APIKey:    getEnv("POLYGON_API_KEY", alpacaKey), // Alpaca keys are accepted by Polygon
			RateLimit: getEnvAsInt("POLYGON_RATE_LIMIT", 300),
		},

		Earnings: EarningsConfig{
			BaseURL:  getEnv("EARNINGS_BASE_URL", "https://finance.yahoo.com"),
			PageSize: getEnvAsInt("EARNINGS_PAGE_SIZE", 100),
		},

		Trader: TraderConfig{
			Timezone:                getEnv("MARKET_TIMEZONE", "America/New_York"),
			PollInterval:            getEnvAsDuration("POLL_INTERVAL", "1s"),
			PhasePause:              getEnvAsDuration("PHASE_PAUSE", "120s"),
			PhaseWindow:             getEnvAsDuration("PHASE_WINDOW", "10m"),
			MinPrice:                getEnvAsFloat("MIN_PRICE", 1),
			MaxPrice:                getEnvAsFloat("MAX_PRICE", 5),
			SnapshotRefreshSchedule: getEnv("SNAPSHOT_REFRESH_SCHEDULE", "0 0 9 * * MON-FRI"),
			StrategyConfig:          getEnv("STRATEGY_CONFIG", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Brokerage credentials are required
	if c.Alpaca.KeyID == "" || c.Alpaca.SecretKey == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if _, err := c.Trader.Location(); err != nil {
		return fmt.Errorf("MARKET_TIMEZONE %q: %w", c.Trader.Timezone, err)
	}

	if c.Trader.MinPrice > c.Trader.MaxPrice {
		return fmt.Errorf("MIN_PRICE (%.2f) must not exceed MAX_PRICE (%.2f)", c.Trader.MinPrice, c.Trader.MaxPrice)
	}

	if c.Trader.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
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
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
