package utils

import (
	"fmt"

	"go-userapi/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaskJWTSecret describes the configured secret without revealing it.
func MaskJWTSecret(secret string) string {
	switch {
	case secret == "":
		return "--- EMPTY (!!! WARNING: JWT Secret is empty !!!) ---"
	case secret == config.DefaultJWTSecret:
		return "default-secret (!!! WARNING: Using default JWT secret !!!)"
	case len(secret) < 8:
		return fmt.Sprintf("*** MASKED (short: %d chars) ***", len(secret))
	default:
		return "*** MASKED ***"
	}
}

// TraceConfigDetails logs the effective configuration at debug level with secrets masked.
func TraceConfigDetails(logger *zap.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		fmt.Println("[WARN] logger or config is nil in TraceConfigDetails")
		return
	}
	dsn := cfg.DBDSN
	if cfg.DBDriver == config.DriverPostgres {
		dsn = MaskConnString(dsn)
	}
	fields := []zapcore.Field{
		zap.String("AppName", cfg.AppName),
		zap.String("AppEnv", cfg.AppEnv),
		zap.String("Port", cfg.Port),
		zap.Bool("Prefork", cfg.Prefork),
		zap.String("JWTSecret", MaskJWTSecret(cfg.JWTSecret)),
		zap.Duration("JWTAccessTokenTTL", cfg.JWTAccessTokenTTL),
		zap.String("DBDriver", cfg.DBDriver),
		zap.String("DBDSN", dsn),
		zap.Int("DBMaxOpenConns", cfg.DBMaxOpenConns),
		zap.Int("DBMaxIdleConns", cfg.DBMaxIdleConns),
		zap.Bool("DBAutoMigrate", cfg.DBAutoMigrate),
		zap.String("OracleConnString", MaskConnString(cfg.OracleConnString)),
		zap.Int("OracleMaxPoolOpenConns", cfg.OracleMaxPoolOpenConns),
		zap.Int("OracleMaxPoolIdleConns", cfg.OracleMaxPoolIdleConns),
		zap.String("SQLiteDBPath", cfg.SQLiteDBPath),
		zap.String("LogFilePath", cfg.LogFilePath),
		zap.String("LogLevel", cfg.LogLevel),
		zap.Int("LogRotateIntervalHours", cfg.LogRotateInterval),
		zap.Int("LogMaxSizeMB", cfg.LogMaxSize),
		zap.Int("LogMaxBackups", cfg.LogMaxBackups),
		zap.Int("LogMaxAgeDays", cfg.LogMaxAge),
		zap.Bool("LogCompress", cfg.LogCompress),
		zap.Duration("LogProcessor_BatchInterval", cfg.LogBatchInterval),
		zap.Int("LogProcessor_BatchSize", cfg.LogProcessorBatchSize),
		zap.Int("LogProcessor_OracleRetryAttempts", cfg.LogProcessorOracleRetryAttempts),
		zap.Int("LogProcessor_OracleRetryDelaySeconds", cfg.LogProcessorOracleRetryDelaySeconds),
		zap.String("CORS_AllowOrigins", cfg.CORSAllowOrigins),
		zap.String("CORS_AllowMethods", cfg.CORSAllowMethods),
		zap.String("CORS_AllowHeaders", cfg.CORSAllowHeaders),
		zap.Bool("AuditSQLiteLog_Enabled", cfg.SQLLiteLogEnabled),
		zap.String("AuditSQLiteLog_Level", cfg.SQLLiteLogLevel),
	}
	logger.Debug("Loaded application configuration details", fields...)
}
