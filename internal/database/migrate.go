package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"go-userapi/internal/config"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// goose keeps its base FS, dialect and logger in package globals.
var gooseMu sync.Mutex

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	sugar *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) { l.sugar.Infof(format, v...) }
func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.sugar.Fatalf(format, v...) }

var gooseDialects = map[string]string{
	config.DriverSQLite:   "sqlite3",
	config.DriverPostgres: "postgres",
}

// Migrate applies the embedded users schema migrations for the given driver.
// Oracle schemas are managed outside the application.
func Migrate(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) error {
	dialect, ok := gooseDialects[driver]
	if !ok {
		logger.Info("No embedded migrations for driver, skipping", zap.String("driver", driver))
		return nil
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{sugar: logger.Sugar()})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect %s: %w", dialect, err)
	}

	if err := goose.UpContext(ctx, db, "migrations/"+driver); err != nil {
		logger.Error("Failed to apply user schema migrations", zap.String("driver", driver), zap.Error(err))
		return fmt.Errorf("failed to migrate %s user database: %w", driver, err)
	}
	logger.Info("User schema migrations applied", zap.String("driver", driver))
	return nil
}
