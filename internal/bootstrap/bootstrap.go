package bootstrap

import (
	"database/sql"
	"fmt"

	"go-userapi/internal/config"
	"go-userapi/internal/handlers"
	"go-userapi/internal/logging"
	"go-userapi/internal/repositories"
	"go-userapi/internal/services"
	"go-userapi/internal/utils"

	"go.uber.org/zap"
)

// AppComponents holds the initialized repositories, services, handlers and processors.
type AppComponents struct {
	Tokens       *utils.TokenManager
	UserRepo     repositories.UserRepository
	LogRepo      repositories.LogRepository
	AuthHandler  *handlers.AuthHandler
	UserHandler  *handlers.UserHandler
	LogProcessor *logging.LogProcessor // nil unless an Oracle sink is attached
}

// InitializeAppComponents wires repositories, services, handlers and the log processor.
// userDB must already be migrated for cfg.DBDriver.
func InitializeAppComponents(cfg *config.Config, fileLogger *zap.Logger, userDB *sql.DB, logRepo repositories.LogRepository) (*AppComponents, error) {
	if userDB == nil {
		return nil, fmt.Errorf("user database handle is nil")
	}
	fileLogger.Info("Initializing application components: Repositories, Services, Handlers, Processors...")

	userRepo, err := repositories.NewUserRepository(userDB, cfg.DBDriver, fileLogger)
	if err != nil {
		return nil, err
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	authService := services.NewAuthService(userRepo, tokens, fileLogger)
	userService := services.NewUserService(userRepo, fileLogger)

	components := &AppComponents{
		Tokens:      tokens,
		UserRepo:    userRepo,
		LogRepo:     logRepo,
		AuthHandler: handlers.NewAuthHandler(authService),
		UserHandler: handlers.NewUserHandler(userService),
	}

	if logRepo != nil && logRepo.HasOracle() {
		components.LogProcessor = logging.NewLogProcessor(cfg, logRepo, fileLogger)
		fileLogger.Info("Log processor created for Oracle sink.")
	} else {
		fileLogger.Info("No Oracle sink configured; audit entries stay in SQLite.")
	}

	fileLogger.Info("Application components initialization complete.", zap.String("userStore", cfg.DBDriver))
	return components, nil
}
