package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap" // Use logger for loading errors
)

// Supported user store drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverOracle   = "oracle"
)

// DefaultJWTSecret is the placeholder secret used when JWT_SECRET is not set.
const DefaultJWTSecret = "default-secret"

// Config holds all configuration for the application
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"go-userapi"`
	AppEnv  string `env:"APP_ENV" envDefault:"local"`
	Port    string `env:"PORT" envDefault:"3000"`
	Prefork bool   `env:"PREFORK" envDefault:"false"`

	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS"`
	CORSAllowMethods string `env:"CORS_ALLOW_METHODS" envDefault:"GET,POST,HEAD,PUT,DELETE,PATCH"`
	CORSAllowHeaders string `env:"CORS_ALLOW_HEADERS" envDefault:"Origin,Content-Type,Accept,Authorization"`

	JWTSecret                    string `env:"JWT_SECRET" envDefault:"default-secret"`
	JWTAccessTokenExpiresSeconds int    `env:"JWT_ACCESS_TOKEN_EXPIRES" envDefault:"3600"`
	JWTAccessTokenTTL            time.Duration

	// --- User store ---
	DBDriver                 string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN                    string `env:"DB_DSN" envDefault:"./data/users.db"`
	DBMaxOpenConns           int    `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns           int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetimeMinutes int    `env:"DB_CONN_MAX_LIFETIME_MINUTES" envDefault:"60"`
	DBConnMaxIdleTimeMinutes int    `env:"DB_CONN_MAX_IDLE_TIME_MINUTES" envDefault:"10"`
	DBAutoMigrate            bool   `env:"DB_AUTO_MIGRATE" envDefault:"true"`

	// --- Oracle (audit log sink, and user store when DB_DRIVER=oracle) ---
	OracleConnString                 string `env:"ORACLE_CONN_STRING"`
	OracleMaxPoolOpenConns           int    `env:"ORACLE_MAX_POOL_OPEN_CONNS" envDefault:"20"`
	OracleMaxPoolIdleConns           int    `env:"ORACLE_MAX_POOL_IDLE_CONNS" envDefault:"5"`
	OracleMaxPoolConnLifetimeMinutes int    `env:"ORACLE_MAX_POOL_CONN_LIFETIME_MINUTES" envDefault:"60"`
	OracleMaxPoolConnIdleTimeMinutes int    `env:"ORACLE_MAX_POOL_CONN_IDLE_TIME_MINUTES" envDefault:"10"`

	// --- Logging (rotation interval in hours, size in MB, age in days) ---
	SQLiteDBPath      string `env:"SQLITE_DB_PATH" envDefault:"./logs/logs.db"`
	SQLLiteLogEnabled bool   `env:"SQLITE_LOG_ENABLED" envDefault:"true"`
	SQLLiteLogLevel   string `env:"SQLITE_LOG_LEVEL" envDefault:"info"`
	LogFilePath       string `env:"LOG_FILE_PATH" envDefault:"./logs/app.log"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	LogRotateInterval int    `env:"LOG_ROTATE_INTERVAL" envDefault:"1"`
	LogMaxSize        int    `env:"LOG_MAX_SIZE" envDefault:"100"`
	LogMaxBackups     int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAge         int    `env:"LOG_MAX_AGE" envDefault:"30"`
	LogCompress       bool   `env:"LOG_COMPRESS" envDefault:"false"`

	// --- Audit log processor ---
	LogBatchIntervalSeconds             int `env:"LOG_BATCH_INTERVAL_SECONDS" envDefault:"60"`
	LogBatchInterval                    time.Duration
	LogProcessorBatchSize               int `env:"LOG_PROCESSOR_BATCH_SIZE" envDefault:"100"`
	LogProcessorOracleRetryAttempts     int `env:"LOG_PROCESSOR_ORACLE_RETRY_ATTEMPTS" envDefault:"3"`
	LogProcessorOracleRetryDelaySeconds int `env:"LOG_PROCESSOR_ORACLE_RETRY_DELAY_SECONDS" envDefault:"30"`
}

// IsDevelopment reports whether the app runs in a local or development environment.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "local" || c.AppEnv == "development"
}

// LoadConfig reads configuration from environment variables or .env file
func LoadConfig(logger *zap.Logger) (*Config, error) { // logger can be nil here
	if logger == nil {
		logger = zap.NewNop()
	}
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "local"
	}

	envFileName := fmt.Sprintf(".env.%s", appEnv)
	if _, err := os.Stat(envFileName); err == nil {
		if err := godotenv.Load(envFileName); err != nil {
			logger.Warn("Error loading .env file, continuing with environment variables", zap.String("file", envFileName), zap.Error(err))
		} else {
			logger.Info("Loaded configuration", zap.String("file", envFileName))
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			logger.Warn("Error loading .env file", zap.Error(err))
		} else {
			logger.Info("Loaded configuration from .env")
		}
	} else {
		logger.Warn("No .env file found for environment, relying on environment variables or defaults", zap.String("environment", appEnv))
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.normalize(logger); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize derives computed fields and rejects unusable combinations.
func (c *Config) normalize(logger *zap.Logger) error {
	c.LogLevel = strings.ToLower(c.LogLevel)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "dpanic": true, "panic": true, "fatal": true}
	if !validLevels[c.LogLevel] {
		logger.Warn("Invalid LOG_LEVEL specified, defaulting to 'info'", zap.String("invalidLevel", c.LogLevel))
		c.LogLevel = "info"
	}
	c.SQLLiteLogLevel = strings.ToLower(c.SQLLiteLogLevel)

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required for driver %q", c.DBDriver)
		}
	case DriverOracle:
		if c.OracleConnString == "" {
			return fmt.Errorf("ORACLE_CONN_STRING is required when DB_DRIVER=oracle")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.JWTAccessTokenExpiresSeconds <= 0 {
		logger.Warn("JWT_ACCESS_TOKEN_EXPIRES must be positive, defaulting to 3600", zap.Int("value", c.JWTAccessTokenExpiresSeconds))
		c.JWTAccessTokenExpiresSeconds = 3600
	}
	c.JWTAccessTokenTTL = time.Duration(c.JWTAccessTokenExpiresSeconds) * time.Second

	if c.LogBatchIntervalSeconds <= 1 {
		c.LogBatchIntervalSeconds = 60
	}
	c.LogBatchInterval = time.Duration(c.LogBatchIntervalSeconds) * time.Second

	if c.JWTSecret == DefaultJWTSecret {
		logger.Warn("JWT_SECRET is using the default value. Please set a strong secret in production.")
	}

	if c.CORSAllowOrigins == "" && c.IsDevelopment() {
		c.CORSAllowOrigins = "*" // Be permissive in local/dev
	}
	if !c.IsDevelopment() && (c.CORSAllowOrigins == "*" || c.CORSAllowOrigins == "") {
		logger.Warn("CORS_ALLOW_ORIGINS is set to '*' or is empty in a non-local/dev environment. Set specific origins for production.")
		return fmt.Errorf("CORS_ALLOW_ORIGINS must be set explicitly in production environments")
	}
	return nil
}
