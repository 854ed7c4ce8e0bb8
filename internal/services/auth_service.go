package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-userapi/internal/models"
	"go-userapi/internal/pkg/validation"
	"go-userapi/internal/repositories"
	"go-userapi/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// dummyPasswordHash is checked when the username is unknown so both login
// failures cost one argon2 derivation.
var dummyPasswordHash = sync.OnceValue(func() string {
	hash, err := utils.HashPassword(uuid.NewString())
	if err != nil {
		return ""
	}
	return hash
})

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, log Loggers, in validation.RegisterInput) (*models.User, error)
	Login(ctx context.Context, log Loggers, in validation.LoginInput) (string, *models.User, error)
}

type authServiceImpl struct {
	userRepo repositories.UserRepository
	tokens   *utils.TokenManager
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, tokens *utils.TokenManager, logger *zap.Logger) AuthService {
	return &authServiceImpl{
		userRepo: userRepo,
		tokens:   tokens,
		logger:   logger,
	}
}

// Register validates the payload, rejects taken usernames or emails and stores the new user.
func (s *authServiceImpl) Register(ctx context.Context, log Loggers, in validation.RegisterInput) (*models.User, error) {
	log = log.withDefaults(s.logger)

	if ferr := validation.ValidateRegistration(in); ferr != nil {
		log.File.Warn("Registration validation failed", zap.String("field", ferr.Field), zap.String("tag", ferr.Tag))
		return nil, fmt.Errorf("%w: %w", ErrValidation, ferr)
	}

	existing, err := s.userRepo.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		log.File.Error("Error checking for existing user", zap.String("username", in.Username), zap.Error(err))
		return nil, err
	}
	if existing != nil {
		log.File.Warn("Registration rejected: username or email exists", zap.String("username", in.Username))
		return nil, ErrUserExists
	}

	hashed, err := utils.HashPassword(in.Password)
	if err != nil {
		log.File.Error("Failed to hash password during registration", zap.String("username", in.Username), zap.Error(err))
		return nil, err
	}

	user, err := s.userRepo.Create(ctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		Nama:         in.Nama,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateUser) {
			log.File.Warn("Registration lost a uniqueness race", zap.String("username", in.Username))
			return nil, ErrUserExists
		}
		log.File.Error("Failed to create user", zap.String("username", in.Username), zap.Error(err))
		return nil, err
	}

	log.File.Info("User registered successfully", zap.String("username", user.Username), zap.Int64("userID", user.ID))
	log.Audit.Info("user.register", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login checks credentials and issues an access token.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *authServiceImpl) Login(ctx context.Context, log Loggers, in validation.LoginInput) (string, *models.User, error) {
	log = log.withDefaults(s.logger)

	if ferr := validation.ValidateLogin(in); ferr != nil {
		log.File.Warn("Login validation failed", zap.String("field", ferr.Field))
		return "", nil, fmt.Errorf("%w: %w", ErrValidation, ferr)
	}

	user, err := s.userRepo.FindByUsername(ctx, in.Username)
	if err != nil {
		log.File.Error("Error finding user during login", zap.String("username", in.Username), zap.Error(err))
		return "", nil, err
	}
	var storedHash string
	if user != nil {
		storedHash = user.PasswordHash
	} else {
		storedHash = dummyPasswordHash()
	}
	matched := utils.CheckPasswordHash(in.Password, storedHash)
	if user == nil || !matched {
		log.File.Warn("Login attempt failed", zap.String("username", in.Username), zap.Bool("user_found", user != nil))
		log.Audit.Warn("user.login_failed", zap.String("username", in.Username))
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		log.File.Error("Failed to generate JWT token during login", zap.Int64("userID", user.ID), zap.Error(err))
		return "", nil, err
	}

	log.File.Info("User logged in successfully", zap.String("username", user.Username), zap.Int64("userID", user.ID))
	log.Audit.Info("user.login", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return token, user, nil
}
