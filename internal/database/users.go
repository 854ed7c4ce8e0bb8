package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go-userapi/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL Driver
	"go.uber.org/zap"
)

// OpenUserDB opens the user store selected by cfg.DBDriver.
// For the oracle driver the shared Oracle pool is returned as-is.
func OpenUserDB(ctx context.Context, cfg *config.Config, oracleDB *sql.DB, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("Opening user database...", zap.String("driver", cfg.DBDriver))

	var db *sql.DB
	var err error
	switch cfg.DBDriver {
	case config.DriverSQLite:
		if err := ensureDir(cfg.DBDSN, logger); err != nil {
			return nil, err
		}
		db, err = sql.Open("sqlite3", sqliteDSN(cfg.DBDSN))
	case config.DriverPostgres:
		db, err = sql.Open("pgx", cfg.DBDSN)
	case config.DriverOracle:
		if oracleDB == nil {
			return nil, fmt.Errorf("oracle user store selected but oracle pool is not initialized")
		}
		return oracleDB, nil
	default:
		return nil, fmt.Errorf("unsupported user store driver %q", cfg.DBDriver)
	}
	if err != nil {
		logger.Error("Failed to open user database", zap.String("driver", cfg.DBDriver), zap.Error(err))
		return nil, fmt.Errorf("failed to open %s user database: %w", cfg.DBDriver, err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeMinutes) * time.Minute)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeMinutes) * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		logger.Error("Failed to ping user database", zap.String("driver", cfg.DBDriver), zap.Error(err))
		return nil, fmt.Errorf("failed to ping %s user database: %w", cfg.DBDriver, err)
	}

	if cfg.DBAutoMigrate {
		if err := Migrate(ctx, db, cfg.DBDriver, logger); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger.Info("User database ready", zap.String("driver", cfg.DBDriver))
	return db, nil
}
