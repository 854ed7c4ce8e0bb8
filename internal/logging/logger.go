package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"go-userapi/internal/config"
	"go-userapi/internal/models"
	"go-userapi/internal/repositories"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalFileLogger  *zap.Logger
	globalAuditLogger *zap.Logger
	globalLoggersMu   sync.RWMutex
)

// AppLoggers holds the logger instances for the application.
type AppLoggers struct {
	File  *zap.Logger // console and rotating file
	Audit *zap.Logger // account events, buffered in SQLite; Nop when disabled
}

func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + level.CapitalString() + "]")
}

func colorBracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color string
	switch level {
	case zapcore.DebugLevel:
		color = "\x1b[35m"
	case zapcore.InfoLevel:
		color = "\x1b[32m"
	case zapcore.WarnLevel:
		color = "\x1b[33m"
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		color = "\x1b[31m"
	}
	if color == "" {
		enc.AppendString("[" + level.CapitalString() + "]")
		return
	}
	enc.AppendString(color + "[" + level.CapitalString() + "]\x1b[0m")
}

// EncoderConfigs returns the console and file encoder configurations.
func EncoderConfigs() (zapcore.EncoderConfig, zapcore.EncoderConfig) {
	consoleEncoderCfg := zap.NewDevelopmentEncoderConfig()
	consoleEncoderCfg.EncodeLevel = colorBracketLevelEncoder
	consoleEncoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	fileEncoderCfg := zap.NewProductionEncoderConfig()
	fileEncoderCfg.EncodeLevel = bracketLevelEncoder
	fileEncoderCfg.TimeKey = "timestamp"
	fileEncoderCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	fileEncoderCfg.EncodeCaller = zapcore.ShortCallerEncoder

	return consoleEncoderCfg, fileEncoderCfg
}

// InitializeLoggers creates the console/file logger and the audit logger.
// The audit logger writes through logRepo, whose SQLite handle may be attached later.
func InitializeLoggers(cfg *config.Config, logRepo repositories.LogRepository, fileSyncer zapcore.WriteSyncer) (*AppLoggers, error) {
	if fileSyncer == nil {
		return nil, fmt.Errorf("file syncer is required")
	}
	appLoggers := &AppLoggers{}

	var fileLogLevel zapcore.Level
	if err := fileLogLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Invalid LOG_LEVEL '%s', defaulting to info: %v\n", cfg.LogLevel, err)
		fileLogLevel = zapcore.InfoLevel
	}

	consoleEncoderCfg, fileEncoderCfg := EncoderConfigs()
	consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderCfg), zapcore.Lock(os.Stdout), fileLogLevel)
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncoderCfg), fileSyncer, fileLogLevel)

	appLoggers.File = zap.New(zapcore.NewTee(consoleCore, fileCore), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	appLoggers.File.Info("File/Console application logger initialized",
		zap.String("environment", cfg.AppEnv),
		zap.String("effectiveLevel", fileLogLevel.String()),
		zap.String("logFile", cfg.LogFilePath),
	)

	if !cfg.SQLLiteLogEnabled || logRepo == nil {
		appLoggers.File.Info("Audit logger is disabled by configuration.")
		appLoggers.Audit = zap.NewNop()
		return appLoggers, nil
	}

	var auditLevel zapcore.Level
	if err := auditLevel.UnmarshalText([]byte(cfg.SQLLiteLogLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] Invalid SQLITE_LOG_LEVEL '%s', defaulting to info: %v\n", cfg.SQLLiteLogLevel, err)
		auditLevel = zapcore.InfoLevel
	}
	appLoggers.Audit = zap.New(NewSQLiteCore(auditLevel, logRepo), zap.AddCaller())
	appLoggers.File.Info("Audit logger initialized", zap.String("effectiveLevel", auditLevel.String()))

	return appLoggers, nil
}

// --- SQLite audit core ---

// sqliteCore implements zapcore.Core and stores every entry as a tbl_log row.
type sqliteCore struct {
	zapcore.LevelEnabler
	repo   repositories.LogRepository
	fields []zapcore.Field
}

// NewSQLiteCore creates a core that writes entries through repo.
func NewSQLiteCore(enab zapcore.LevelEnabler, repo repositories.LogRepository) zapcore.Core {
	return &sqliteCore{LevelEnabler: enab, repo: repo}
}

func (c *sqliteCore) With(fields []zapcore.Field) zapcore.Core {
	clone := c.clone()
	clone.fields = append(clone.fields, fields...)
	return clone
}

func (c *sqliteCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write never fails the caller; storage errors go to stderr.
func (c *sqliteCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	mapEncoder := zapcore.NewMapObjectEncoder()
	for _, field := range c.fields {
		field.AddTo(mapEncoder)
	}
	for _, field := range fields {
		field.AddTo(mapEncoder)
	}

	entry := models.LogEntry{
		Timestamp: ent.Time.UTC(),
		Level:     ent.Level.String(),
		Message:   ent.Message,
		Fields:    "{}",
	}
	if ent.Caller.Defined {
		mapEncoder.Fields["caller"] = ent.Caller.TrimmedPath()
	}
	if len(mapEncoder.Fields) > 0 {
		b, err := json.Marshal(mapEncoder.Fields)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to marshal audit fields: %v\n", err)
			b, _ = json.Marshal(map[string]string{"marshal_error": err.Error()})
		}
		entry.Fields = string(b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.repo.InsertSQLiteLog(ctx, entry); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to insert audit entry into SQLite: %v\n", err)
	}
	return nil
}

func (c *sqliteCore) Sync() error {
	return nil
}

func (c *sqliteCore) clone() *sqliteCore {
	return &sqliteCore{
		LevelEnabler: c.LevelEnabler,
		repo:         c.repo,
		fields:       append([]zapcore.Field(nil), c.fields...),
	}
}

// --- Global logger access ---

// SetGlobalLoggers sets the global logger instances. A nil audit logger becomes a Nop.
func SetGlobalLoggers(fileLogger, auditLogger *zap.Logger) {
	globalLoggersMu.Lock()
	defer globalLoggersMu.Unlock()
	globalFileLogger = fileLogger
	if auditLogger == nil {
		auditLogger = zap.NewNop()
	}
	globalAuditLogger = auditLogger
}

// GetFileLogger returns the global console/file logger.
func GetFileLogger() *zap.Logger {
	globalLoggersMu.RLock()
	l := globalFileLogger
	globalLoggersMu.RUnlock()

	if l == nil {
		fallback, _ := zap.NewProduction()
		fallback.Warn("Global file/console logger accessed before being set")
		return fallback
	}
	return l
}

// GetAuditLogger returns the global audit logger, or a Nop logger.
func GetAuditLogger() *zap.Logger {
	globalLoggersMu.RLock()
	l := globalAuditLogger
	globalLoggersMu.RUnlock()

	if l == nil {
		return zap.NewNop()
	}
	return l
}
