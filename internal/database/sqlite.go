package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-userapi/internal/config"

	_ "github.com/mattn/go-sqlite3" // SQLite Driver
	"go.uber.org/zap"
)

const createLogTableSQL = `
CREATE TABLE IF NOT EXISTS tbl_log (
id INTEGER PRIMARY KEY AUTOINCREMENT,
timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
level TEXT NOT NULL,
message TEXT NOT NULL,
fields TEXT -- Store additional zap fields as JSON string
);
`

// sqliteDSN appends the pragmas every SQLite handle in this app runs with.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// ensureDir creates the parent directory of a file-backed database path.
func ensureDir(path string, logger *zap.Logger) error {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Info("SQLite database directory does not exist, creating...", zap.String("path", dir))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create sqlite db directory %s: %w", dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check status of sqlite db directory %s: %w", dir, err)
	}
	return nil
}

// InitSQLite initializes the SQLite audit log buffer and ensures tbl_log exists.
func InitSQLite(cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	logger.Info("Initializing SQLite log database...", zap.String("requested_path", cfg.SQLiteDBPath))

	if err := ensureDir(cfg.SQLiteDBPath, logger); err != nil {
		logger.Error("Failed to prepare SQLite log directory", zap.Error(err))
		return nil, err
	}

	db, err := sql.Open("sqlite3", sqliteDSN(cfg.SQLiteDBPath))
	if err != nil {
		logger.Error("Failed to open SQLite database", zap.String("path", cfg.SQLiteDBPath), zap.Error(err))
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", cfg.SQLiteDBPath, err)
	}

	// One writer is enough for log inserts.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		logger.Error("Failed to ping SQLite database after open", zap.Error(err))
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.Exec(createLogTableSQL); err != nil {
		db.Close()
		logger.Error("Failed to create tbl_log in SQLite", zap.Error(err))
		return nil, fmt.Errorf("failed to create sqlite table tbl_log: %w", err)
	}
	logger.Debug("SQLite tbl_log verified/created.")

	logger.Info("SQLite log database initialized successfully", zap.String("path", cfg.SQLiteDBPath))
	return db, nil
}
