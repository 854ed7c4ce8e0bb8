package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-userapi/internal/models"

	"go.uber.org/zap"
)

// ErrOracleConnection is returned when an operation fails due to Oracle connection issues.
var ErrOracleConnection = errors.New("oracle connection error")

// ErrLogStoreUnavailable is returned while the SQLite log buffer is not attached yet.
var ErrLogStoreUnavailable = errors.New("sqlite log store not initialized")

// LogRepository buffers audit log entries in SQLite and ships them to Oracle.
type LogRepository interface {
	InsertSQLiteLog(ctx context.Context, entry models.LogEntry) error
	GetSQLiteLogs(ctx context.Context, limit int) ([]models.LogEntry, error)
	DeleteSQLiteLogsByID(ctx context.Context, ids []int64) error
	InsertBatchOracle(ctx context.Context, logs []models.LogEntry) error

	// Handles can be attached after construction; loggers exist before the databases do.
	SetSqliteDB(db *sql.DB)
	SetOracleDB(db *sql.DB)
	HasOracle() bool
}

type logRepositoryImpl struct {
	mu       sync.RWMutex
	sqliteDB *sql.DB
	oracleDB *sql.DB
	logger   *zap.Logger
}

// NewLogRepository creates a LogRepository. Both handles may be nil.
func NewLogRepository(sqliteDB *sql.DB, oracleDB *sql.DB, logger *zap.Logger) LogRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logRepositoryImpl{
		sqliteDB: sqliteDB,
		oracleDB: oracleDB,
		logger:   logger,
	}
}

func (r *logRepositoryImpl) sqlite() *sql.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sqliteDB
}

func (r *logRepositoryImpl) log() *zap.Logger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.logger
}

func (r *logRepositoryImpl) oracle() *sql.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.oracleDB
}

// --- SQLite Methods ---

// InsertSQLiteLog appends one entry to tbl_log.
// It must not log through the audit logger, which is what calls it.
func (r *logRepositoryImpl) InsertSQLiteLog(ctx context.Context, entry models.LogEntry) error {
	db := r.sqlite()
	if db == nil {
		return ErrLogStoreUnavailable
	}
	fieldsJSON := entry.Fields
	if fieldsJSON == "" {
		fieldsJSON = "{}"
	}
	_, err := db.ExecContext(ctx, `INSERT INTO tbl_log (timestamp, level, message, fields) VALUES (?, ?, ?, ?)`,
		entry.Timestamp, entry.Level, entry.Message, fieldsJSON)
	if err != nil {
		return fmt.Errorf("sqlite insert failed: %w", err)
	}
	return nil
}

// GetSQLiteLogs returns up to limit buffered entries, oldest first.
func (r *logRepositoryImpl) GetSQLiteLogs(ctx context.Context, limit int) ([]models.LogEntry, error) {
	db := r.sqlite()
	if db == nil {
		return nil, ErrLogStoreUnavailable
	}
	rows, err := db.QueryContext(ctx, `SELECT id, timestamp, level, message, fields FROM tbl_log ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		r.log().Error("Failed to query logs from SQLite", zap.Error(err))
		return nil, fmt.Errorf("sqlite query failed: %w", err)
	}
	defer rows.Close()

	var logs []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		var ts sql.NullTime
		var fields sql.NullString
		if err := rows.Scan(&entry.ID, &ts, &entry.Level, &entry.Message, &fields); err != nil {
			r.log().Error("Failed to scan log row from SQLite", zap.Error(err))
			continue
		}
		entry.Timestamp = time.Now().UTC()
		if ts.Valid {
			entry.Timestamp = ts.Time
		}
		entry.Fields = "{}"
		if fields.Valid {
			entry.Fields = fields.String
		}
		logs = append(logs, entry)
	}
	if err = rows.Err(); err != nil {
		r.log().Error("Error during iteration over SQLite log rows", zap.Error(err))
		return nil, fmt.Errorf("sqlite row iteration error: %w", err)
	}
	return logs, nil
}

// DeleteSQLiteLogsByID removes shipped entries from the buffer.
func (r *logRepositoryImpl) DeleteSQLiteLogsByID(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	db := r.sqlite()
	if db == nil {
		return ErrLogStoreUnavailable
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM tbl_log WHERE id IN (%s)`, strings.Join(placeholders, ","))
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log().Error("Failed to delete logs from SQLite", zap.Error(err))
		return fmt.Errorf("sqlite delete failed: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	r.log().Debug("Deleted logs from SQLite", zap.Int64("rows_affected", rowsAffected), zap.Int("id_count", len(ids)))
	return nil
}

// --- Oracle Operations ---

// InsertBatchOracle inserts entries into Oracle tbl_log in one transaction.
// Connection-level failures are wrapped with ErrOracleConnection.
func (r *logRepositoryImpl) InsertBatchOracle(ctx context.Context, logs []models.LogEntry) error {
	if len(logs) == 0 {
		return nil
	}

	db := r.oracle()
	if db == nil {
		return fmt.Errorf("repository oracle DB handle is nil: %w", ErrOracleConnection)
	}

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	err := db.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		r.log().Warn("Oracle ping failed before batch insert", zap.Error(err))
		return fmt.Errorf("oracle ping failed: %v: %w", err, ErrOracleConnection)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return classifyOracleErr("begin tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tbl_log (log_timestamp, log_level, log_message, log_details) VALUES (:1, :2, :3, :4)`)
	if err != nil {
		return classifyOracleErr("prepare", err)
	}
	defer stmt.Close()

	for _, entry := range logs {
		fieldsData := entry.Fields
		if fieldsData == "" {
			fieldsData = "{}"
		}
		if _, err := stmt.ExecContext(ctx, entry.Timestamp, entry.Level, entry.Message, fieldsData); err != nil {
			r.log().Error("Oracle batch insert stopped at first failing row", zap.Error(err), zap.Int64("sqlite_id", entry.ID))
			return classifyOracleErr("batch exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyOracleErr("commit", err)
	}

	r.log().Debug("Inserted log batch into Oracle", zap.Int("batch_size", len(logs)))
	return nil
}

// SetSqliteDB attaches the SQLite log buffer.
func (r *logRepositoryImpl) SetSqliteDB(db *sql.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sqliteDB = db
}

// SetOracleDB replaces the Oracle handle, e.g. after the processor reconnects.
// The previous handle is left to its owner to close.
func (r *logRepositoryImpl) SetOracleDB(db *sql.DB) {
	r.mu.Lock()
	r.oracleDB = db
	r.mu.Unlock()

	status := "nil"
	if db != nil {
		status = "set/updated"
	}
	r.log().Info("LogRepository Oracle DB handle updated", zap.String("status", status))
}

// SetLogger replaces the logger used for the repository's own messages.
func (r *logRepositoryImpl) SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// HasOracle reports whether an Oracle sink is attached.
func (r *logRepositoryImpl) HasOracle() bool {
	return r.oracle() != nil
}

func classifyOracleErr(op string, err error) error {
	if isConnectionError(err) {
		return fmt.Errorf("oracle %s failed: %v: %w", op, err, ErrOracleConnection)
	}
	return fmt.Errorf("oracle %s failed: %w", op, err)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, ErrOracleConnection) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"ora-03113", "ora-03114", "ora-125",
		"connection refused", "network error", "i/o error",
		"broken pipe", "reset by peer", "timeout",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}
