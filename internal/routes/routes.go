package routes

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"go-userapi/internal/bootstrap"
	"go-userapi/internal/config"
	mw "go-userapi/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SetupRoutes configures the application routes. deps are the databases
// reported by /health, keyed by name; nil handles show as "uninitialized".
func SetupRoutes(app *fiber.App, cfg *config.Config, logger *zap.Logger, components *bootstrap.AppComponents, deps map[string]*sql.DB) {
	logger.Info("Setting up application routes...")

	app.Get("/", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": cfg.AppName + " is running",
			"status":  "success",
		})
	})
	app.Get("/health", healthHandler(deps))

	protected := mw.Protected(components.Tokens)
	users := app.Group("/users")
	components.AuthHandler.SetupAuthRoutes(users, protected)
	components.UserHandler.SetupUserRoutes(users, protected)
}

func healthHandler(deps map[string]*sql.DB) fiber.Handler {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *fiber.Ctx) error {
		lg := mw.GetRequestFileLogger(c)
		status := "healthy"
		dbStatus := fiber.Map{}

		for _, name := range names {
			db := deps[name]
			if db == nil {
				dbStatus[name] = "uninitialized"
				continue
			}
			pingCtx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
			err := db.PingContext(pingCtx)
			cancel()
			if err != nil {
				dbStatus[name] = "disconnected"
				status = "degraded"
				lg.Warn("Health check: ping failed", zap.String("dependency", name), zap.Error(err))
				continue
			}
			dbStatus[name] = "connected"
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":       status,
			"timestamp":    time.Now().UTC(),
			"dependencies": dbStatus,
		})
	}
}
