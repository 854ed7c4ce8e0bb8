package repositories

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go-userapi/internal/config"
	"go-userapi/internal/database"
	"go-userapi/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSQLiteLogRepo(t *testing.T) LogRepository {
	t.Helper()
	cfg := &config.Config{SQLiteDBPath: filepath.Join(t.TempDir(), "logs.db")}
	db, err := database.InitSQLite(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLogRepository(db, nil, zap.NewNop())
}

func TestLogRepository_SQLiteBuffer(t *testing.T) {
	repo := newSQLiteLogRepo(t)
	ctx := context.Background()

	for _, msg := range []string{"user.register", "user.login", "user.logout"} {
		require.NoError(t, repo.InsertSQLiteLog(ctx, models.LogEntry{
			Timestamp: time.Now().UTC(),
			Level:     "info",
			Message:   msg,
		}))
	}

	logs, err := repo.GetSQLiteLogs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "user.register", logs[0].Message)
	assert.Equal(t, "user.login", logs[1].Message)
	assert.Equal(t, "{}", logs[0].Fields)
	assert.Less(t, logs[0].ID, logs[1].ID)

	require.NoError(t, repo.DeleteSQLiteLogsByID(ctx, []int64{logs[0].ID, logs[1].ID}))
	require.NoError(t, repo.DeleteSQLiteLogsByID(ctx, nil))

	logs, err = repo.GetSQLiteLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "user.logout", logs[0].Message)
}

func TestLogRepository_NoHandles(t *testing.T) {
	repo := NewLogRepository(nil, nil, nil)
	ctx := context.Background()
	entry := models.LogEntry{Timestamp: time.Now(), Level: "info", Message: "m"}

	assert.ErrorIs(t, repo.InsertSQLiteLog(ctx, entry), ErrLogStoreUnavailable)
	_, err := repo.GetSQLiteLogs(ctx, 1)
	assert.ErrorIs(t, err, ErrLogStoreUnavailable)
	assert.ErrorIs(t, repo.DeleteSQLiteLogsByID(ctx, []int64{1}), ErrLogStoreUnavailable)
	assert.ErrorIs(t, repo.InsertBatchOracle(ctx, []models.LogEntry{entry}), ErrOracleConnection)
	assert.NoError(t, repo.InsertBatchOracle(ctx, nil))
	assert.False(t, repo.HasOracle())
}

func TestLogRepository_InsertBatchOracle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLogRepository(nil, nil, zap.NewNop())
	repo.SetOracleDB(db)
	require.True(t, repo.HasOracle())

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectBegin()
	prep := mock.ExpectPrepare(`INSERT INTO tbl_log \(log_timestamp, log_level, log_message, log_details\)`)
	prep.ExpectExec().WithArgs(ts, "info", "user.login", `{"user_id":1}`).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs(ts, "warn", "user.login_failed", "{}").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err = repo.InsertBatchOracle(context.Background(), []models.LogEntry{
		{ID: 1, Timestamp: ts, Level: "info", Message: "user.login", Fields: `{"user_id":1}`},
		{ID: 2, Timestamp: ts, Level: "warn", Message: "user.login_failed"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepository_InsertBatchOracleClassifiesErrors(t *testing.T) {
	tests := []struct {
		name       string
		execErr    error
		connection bool
	}{
		{"connection lost", errors.New("ORA-03113: end-of-file on communication channel"), true},
		{"missing table", errors.New("ORA-00942: table or view does not exist"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewLogRepository(nil, db, zap.NewNop())

			mock.ExpectBegin()
			mock.ExpectPrepare(`INSERT INTO tbl_log`).ExpectExec().WillReturnError(tt.execErr)
			mock.ExpectRollback()

			err = repo.InsertBatchOracle(context.Background(), []models.LogEntry{{Level: "info", Message: "m"}})
			require.Error(t, err)
			assert.Equal(t, tt.connection, errors.Is(err, ErrOracleConnection))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
