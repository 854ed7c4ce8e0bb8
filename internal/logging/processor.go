package logging

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"go-userapi/internal/config"
	"go-userapi/internal/database"
	"go-userapi/internal/models"
	"go-userapi/internal/repositories"

	"go.uber.org/zap"
)

var errProcessorStopped = errors.New("processor stopped")

// ConnectFunc opens a fresh Oracle handle for the processor after a connection failure.
type ConnectFunc func() (*sql.DB, error)

// LogProcessor moves buffered audit entries from SQLite to Oracle.
type LogProcessor struct {
	logRepo    repositories.LogRepository
	logger     *zap.Logger
	connect    ConnectFunc
	interval   time.Duration
	batchSize  int
	attempts   int
	retryDelay time.Duration

	mu       sync.Mutex
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

// NewLogProcessor creates a LogProcessor that reconnects with database.InitOracle.
func NewLogProcessor(cfg *config.Config, logRepo repositories.LogRepository, logger *zap.Logger) *LogProcessor {
	return NewLogProcessorWithConnect(cfg, logRepo, logger, func() (*sql.DB, error) {
		return database.InitOracle(cfg, logger)
	})
}

// NewLogProcessorWithConnect creates a LogProcessor with a custom reconnect function.
func NewLogProcessorWithConnect(cfg *config.Config, logRepo repositories.LogRepository, logger *zap.Logger, connect ConnectFunc) *LogProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &LogProcessor{
		logRepo:    logRepo,
		logger:     logger,
		connect:    connect,
		interval:   cfg.LogBatchInterval,
		batchSize:  cfg.LogProcessorBatchSize,
		attempts:   cfg.LogProcessorOracleRetryAttempts,
		retryDelay: time.Duration(cfg.LogProcessorOracleRetryDelaySeconds) * time.Second,
	}
	if p.interval <= 0 {
		p.interval = time.Minute
	}
	if p.batchSize <= 0 {
		p.batchSize = 100
	}
	if p.attempts <= 0 {
		p.attempts = 1
	}
	return p
}

// Start begins the processing loop in its own goroutine.
func (p *LogProcessor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		p.logger.Warn("Log processor already running")
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.stopChan = make(chan struct{})
	p.done = make(chan struct{})
	p.running = true
	go p.run(p.ticker, p.stopChan, p.done)
	p.logger.Info("SQLite to Oracle log processor started", zap.Duration("interval", p.interval))
}

// Stop ends the loop, waits for it to exit, then ships one final batch.
func (p *LogProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		p.logger.Warn("Log processor not running")
		return
	}
	p.running = false
	p.ticker.Stop()
	close(p.stopChan)
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("Processing final log batch before shutdown...")
	ctx, cancel := context.WithTimeout(context.Background(), p.retryDelay+5*time.Second)
	defer cancel()
	p.ProcessBatch(ctx, nil)
	p.logger.Info("Log processor stopped.")
}

func (p *LogProcessor) run(ticker *time.Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			p.ProcessBatch(ctx, stop)
			cancel()
		case <-stop:
			p.logger.Info("Received stop signal, exiting log processing loop.")
			return
		}
	}
}

// ProcessBatch ships one batch. Rows leave SQLite only after Oracle commits them.
// A nil stop channel disables early exit on stop.
func (p *LogProcessor) ProcessBatch(ctx context.Context, stop <-chan struct{}) {
	logs, err := p.logRepo.GetSQLiteLogs(ctx, p.batchSize)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			p.logger.Info("Context cancelled during SQLite fetch.", zap.Error(err))
		} else {
			p.logger.Error("Failed to get logs from SQLite", zap.Error(err))
		}
		return
	}
	if len(logs) == 0 {
		p.logger.Debug("No logs in SQLite to process")
		return
	}

	if err := p.insertWithRetry(ctx, stop, logs); err != nil {
		p.logger.Warn("Failed to ship log batch to Oracle; rows stay in SQLite", zap.Error(err), zap.Int("log_count", len(logs)))
		return
	}

	ids := make([]int64, len(logs))
	for i, entry := range logs {
		ids[i] = entry.ID
	}
	if err := p.logRepo.DeleteSQLiteLogsByID(ctx, ids); err != nil {
		p.logger.Error("Failed to delete shipped logs from SQLite; they will be sent again", zap.Error(err), zap.Int64s("log_ids", ids))
		return
	}
	p.logger.Info("Processed and transferred log batch", zap.Int("count", len(logs)))
}

func (p *LogProcessor) insertWithRetry(ctx context.Context, stop <-chan struct{}, logs []models.LogEntry) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err := interrupted(ctx, stop); err != nil {
			return err
		}

		insertCtx, cancel := context.WithTimeout(ctx, 45*time.Second)
		err = p.logRepo.InsertBatchOracle(insertCtx, logs)
		cancel()
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrOracleConnection) {
			p.logger.Error("Oracle insert failed with a non-retryable error", zap.Error(err), zap.Int("attempt", attempt))
			return err
		}
		if attempt == p.attempts {
			break
		}

		p.logger.Warn("Oracle insert failed (connection issue), reconnecting before retry",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.attempts),
		)
		p.reconnect(ctx)

		select {
		case <-time.After(p.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return errProcessorStopped
		}
	}
	p.logger.Error("Oracle insert failed after max retries", zap.Error(err), zap.Int("attempts", p.attempts))
	return err
}

func (p *LogProcessor) reconnect(ctx context.Context) {
	if p.connect == nil {
		return
	}
	db, err := p.connect()
	if err != nil || db == nil {
		p.logger.Warn("Processor could not open a new Oracle handle", zap.Error(err))
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		p.logger.Error("New Oracle handle failed ping", zap.Error(err))
		db.Close()
		return
	}
	p.logRepo.SetOracleDB(db)
}

func interrupted(ctx context.Context, stop <-chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-stop:
		return errProcessorStopped
	default:
		return nil
	}
}
