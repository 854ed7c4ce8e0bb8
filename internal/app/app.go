package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go-userapi/internal/bootstrap"
	"go-userapi/internal/config"
	"go-userapi/internal/database"
	"go-userapi/internal/logging"
	"go-userapi/internal/middleware"
	"go-userapi/internal/repositories"
	"go-userapi/internal/routes"
	"go-userapi/internal/utils"

	"github.com/DeRuina/timberjack"
	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errorHandler answers every unhandled error with {"error": ...}.
// Outside production the underlying error is added as "detail".
func errorHandler(cfg *config.Config) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		lg := middleware.GetRequestFileLogger(c)
		code := fiber.StatusInternalServerError
		message := "Internal server error"
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		}

		fields := []zap.Field{
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Error(err),
		}
		if code >= fiber.StatusInternalServerError {
			lg.Error("Unhandled request error", fields...)
		} else {
			lg.Warn("Request rejected", fields...)
		}

		resp := fiber.Map{"error": message}
		if code >= fiber.StatusInternalServerError && cfg.AppEnv != "production" {
			resp["detail"] = err.Error()
		}
		return c.Status(code).JSON(resp)
	}
}

// NewServer builds the Fiber app with middleware and routes. deps are the
// databases reported by /health.
func NewServer(cfg *config.Config, fileLogger, auditLogger *zap.Logger, components *bootstrap.AppComponents, deps map[string]*sql.DB) *fiber.App {
	appFiber := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		Prefork:      cfg.Prefork,
		ErrorHandler: errorHandler(cfg),
	})

	appFiber.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.LogLevel == "debug",
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			middleware.GetRequestFileLogger(c).Error("Panic recovered", zap.Any("panic_value", e))
		},
	}))
	fileLogger.Info("Configuring CORS", zap.String("origins", cfg.CORSAllowOrigins), zap.String("methods", cfg.CORSAllowMethods), zap.String("headers", cfg.CORSAllowHeaders))
	appFiber.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSAllowOrigins,
		AllowMethods:  cfg.CORSAllowMethods,
		AllowHeaders:  cfg.CORSAllowHeaders,
		ExposeHeaders: middleware.RequestIDHeader,
	}))
	appFiber.Use(middleware.RequestLoggers(fileLogger, auditLogger))
	if cfg.LogLevel == "debug" {
		appFiber.Use(middleware.RequestDebugLogger())
	}
	appFiber.Use(fiberzap.New(fiberzap.Config{
		Logger: fileLogger,
		Fields: []string{"status", "method", "url", "ip", "latency", "error"},
		FieldsFunc: func(c *fiber.Ctx) []zap.Field {
			fields := []zap.Field{zap.String("log_type", "access")}
			if reqID := middleware.GetRequestID(c); reqID != "" {
				fields = append(fields, zap.String("request_id", reqID))
			}
			return fields
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
	}))

	routes.SetupRoutes(appFiber, cfg, fileLogger, components, deps)
	return appFiber
}

// Run initializes and starts the application
func Run() {
	initAppStartTime := time.Now()

	// --- 1. Load Configuration ---
	tempConfigLogger, _ := zap.NewProduction(zap.ErrorOutput(zapcore.Lock(os.Stderr)))
	defer tempConfigLogger.Sync()

	cfg, err := config.LoadConfig(tempConfigLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- 2. Rotating file writer ---
	logDir := filepath.Dir(cfg.LogFilePath)
	if logDir != "." && logDir != "/" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: Failed to ensure log directory %s exists: %v\n", logDir, err)
			os.Exit(1)
		}
	}
	timberJackLogger := &timberjack.Logger{
		Filename:         cfg.LogFilePath,
		MaxSize:          cfg.LogMaxSize,
		MaxBackups:       cfg.LogMaxBackups,
		MaxAge:           cfg.LogMaxAge,
		Compress:         cfg.LogCompress,
		LocalTime:        true,
		RotationInterval: time.Duration(cfg.LogRotateInterval) * time.Hour,
	}
	defer timberJackLogger.Close()
	fileSyncer := zapcore.AddSync(timberJackLogger)

	// --- 3. Loggers. The audit logger writes through logRepo, whose DB handles are attached below. ---
	logRepo := repositories.NewLogRepository(nil, nil, tempConfigLogger)
	appLoggers, err := logging.InitializeLoggers(cfg, logRepo, fileSyncer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to initialize application loggers: %v\n", err)
		os.Exit(1)
	}
	fileLogger, auditLogger := appLoggers.File, appLoggers.Audit
	logging.SetGlobalLoggers(fileLogger, auditLogger)
	if lr, ok := logRepo.(interface{ SetLogger(*zap.Logger) }); ok {
		lr.SetLogger(fileLogger)
	}

	utils.TraceConfigDetails(fileLogger, cfg)

	// --- 4. Databases ---
	sqliteDB, err := database.InitSQLite(cfg, fileLogger)
	if err != nil {
		fileLogger.Fatal("Failed to initialize SQLite log database", zap.Error(err))
	}
	logRepo.SetSqliteDB(sqliteDB)

	oracleDB, err := database.InitOracle(cfg, fileLogger)
	if err != nil {
		fileLogger.Error("Error during Oracle DB pool initialization. Audit shipping is disabled.", zap.Error(err))
	} else if oracleDB != nil {
		logRepo.SetOracleDB(oracleDB)
	}

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	userDB, err := database.OpenUserDB(startupCtx, cfg, oracleDB, fileLogger)
	cancelStartup()
	if err != nil {
		fileLogger.Fatal("Failed to open user database", zap.Error(err))
	}

	// --- 5. Components, server, routes ---
	components, err := bootstrap.InitializeAppComponents(cfg, fileLogger, userDB, logRepo)
	if err != nil {
		fileLogger.Fatal("Failed to initialize application components", zap.Error(err))
	}

	deps := map[string]*sql.DB{"users": userDB, "sqlite_log": sqliteDB}
	if cfg.DBDriver != config.DriverOracle {
		deps["oracle"] = oracleDB
	}
	appFiber := NewServer(cfg, fileLogger, auditLogger, components, deps)

	// --- 6. Log processor, master process only ---
	if components.LogProcessor != nil && !fiber.IsChild() {
		fileLogger.Info("Master process starting LogProcessor...", zap.Int("pid", os.Getpid()))
		components.LogProcessor.Start()
	}

	// --- 7. Start Server & Graceful Shutdown ---
	serverCtx, cancelServerCtx := context.WithCancel(context.Background())
	defer cancelServerCtx()
	serverStopped := make(chan struct{})

	go func() {
		defer close(serverStopped)
		listenAddr := ":" + cfg.Port
		fileLogger.Info(fmt.Sprintf("Completed initialization application in %d ms.", time.Since(initAppStartTime).Milliseconds()))
		fileLogger.Info("Starting Fiber server...",
			zap.String("address", listenAddr),
			zap.Bool("prefork_enabled", cfg.Prefork),
			zap.Int("pid", os.Getpid()),
			zap.String("app_env", cfg.AppEnv),
		)
		if err := appFiber.Listen(listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fileLogger.Error("Server listener failed", zap.String("address", listenAddr), zap.Error(err))
			cancelServerCtx()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case s := <-sig:
		fileLogger.Info("Shutdown signal received.", zap.String("signal", s.String()))
	case <-serverCtx.Done():
		fileLogger.Info("Server context cancelled, initiating shutdown.")
	}

	fileLogger.Info("Initiating graceful shutdown...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancelShutdown()

	if err := appFiber.ShutdownWithContext(shutdownCtx); err != nil {
		fileLogger.Error("Fiber server shutdown failed", zap.Error(err))
	} else {
		fileLogger.Info("Fiber server gracefully stopped.")
	}
	<-serverStopped

	// Stop after the listener so in-flight audit events make the final batch.
	if components.LogProcessor != nil && !fiber.IsChild() {
		components.LogProcessor.Stop()
	}

	if errSync := fileLogger.Sync(); errSync != nil && !strings.Contains(errSync.Error(), "sync /dev/stdout") {
		fmt.Fprintf(os.Stderr, "[WARN] Error syncing file/console logger: %v\n", errSync)
	}

	closeDB := func(name string, db *sql.DB) {
		if db == nil {
			return
		}
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] Error closing %s database: %v\n", name, err)
			return
		}
		fmt.Printf("[INFO] %s database closed.\n", name)
	}
	if userDB != oracleDB {
		closeDB("user", userDB)
	}
	closeDB("SQLite log", sqliteDB)
	closeDB("Oracle", oracleDB)

	fmt.Println("[INFO] Application shutdown complete.")
}
