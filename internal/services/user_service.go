package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-userapi/internal/models"
	"go-userapi/internal/pkg/validation"
	"go-userapi/internal/repositories"

	"go.uber.org/zap"
)

// DefaultPerPage is the page size used when the client does not send one.
const DefaultPerPage = 10

// ListQuery holds List parameters. PerPage <= 0 returns every match.
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
}

// ListResult is one page of users and the total number of matches.
type ListResult struct {
	Items   []models.User
	Total   int64
	Page    int
	PerPage int
}

// UserService defines read, update and delete over user accounts.
type UserService interface {
	List(ctx context.Context, log Loggers, q ListQuery) (*ListResult, error)
	Get(ctx context.Context, log Loggers, id int64) (*models.User, error)
	Update(ctx context.Context, log Loggers, id int64, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, log Loggers, callerID, id int64) (*models.User, error)
}

type userServiceImpl struct {
	userRepo repositories.UserRepository
	logger   *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repositories.UserRepository, logger *zap.Logger) UserService {
	return &userServiceImpl{
		userRepo: userRepo,
		logger:   logger,
	}
}

func (s *userServiceImpl) List(ctx context.Context, log Loggers, q ListQuery) (*ListResult, error) {
	log = log.withDefaults(s.logger)
	if q.Page < 1 {
		q.Page = 1
	}

	items, total, err := s.userRepo.List(ctx, q.Search, q.Page, q.PerPage)
	if err != nil {
		log.File.Error("Error listing users", zap.Error(err))
		return nil, err
	}
	if items == nil {
		items = []models.User{}
	}
	log.File.Debug("Users listed", zap.Int("count", len(items)), zap.Int64("total", total))
	return &ListResult{Items: items, Total: total, Page: q.Page, PerPage: q.PerPage}, nil
}

func (s *userServiceImpl) Get(ctx context.Context, log Loggers, id int64) (*models.User, error) {
	log = log.withDefaults(s.logger)

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		log.File.Error("Error fetching user", zap.Int64("userID", id), zap.Error(err))
		return nil, err
	}
	if user == nil {
		log.File.Debug("User not found", zap.Int64("userID", id))
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Update applies the non-blank fields of patch after re-checking uniqueness
// of the supplied username and email against every other user.
func (s *userServiceImpl) Update(ctx context.Context, log Loggers, id int64, patch models.UserPatch) (*models.User, error) {
	log = log.withDefaults(s.logger)

	if ferr := validation.ValidateUpdate(patch); ferr != nil {
		log.File.Warn("Update validation failed", zap.Int64("userID", id), zap.String("field", ferr.Field))
		return nil, fmt.Errorf("%w: %w", ErrValidation, ferr)
	}

	user, err := s.Get(ctx, log, id)
	if err != nil {
		return nil, err
	}

	username, email := supplied(patch.Username), supplied(patch.Email)
	taken, err := s.userRepo.FindByUsernameOrEmailExcluding(ctx, username, email, id)
	if err != nil {
		log.File.Error("Error checking username/email availability", zap.Int64("userID", id), zap.Error(err))
		return nil, err
	}
	if taken != nil {
		log.File.Warn("Update rejected: username or email used by another user", zap.Int64("userID", id), zap.Int64("holderID", taken.ID))
		return nil, ErrUserExists
	}

	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if nama := supplied(patch.Nama); nama != "" {
		user.Nama = nama
	}

	updated, err := s.userRepo.Update(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicateUser):
			return nil, ErrUserExists
		case errors.Is(err, repositories.ErrNotFound):
			return nil, ErrUserNotFound
		}
		log.File.Error("Failed to update user", zap.Int64("userID", id), zap.Error(err))
		return nil, err
	}

	log.File.Info("User updated", zap.Int64("userID", id))
	log.Audit.Info("user.update", zap.Int64("user_id", id), zap.String("username", updated.Username))
	return updated, nil
}

// Delete removes user id on behalf of callerID and returns the removed record.
func (s *userServiceImpl) Delete(ctx context.Context, log Loggers, callerID, id int64) (*models.User, error) {
	log = log.withDefaults(s.logger)

	user, err := s.Get(ctx, log, id)
	if err != nil {
		return nil, err
	}
	if id == callerID {
		log.File.Warn("Self-delete rejected", zap.Int64("userID", id))
		return nil, ErrSelfDelete
	}

	if err := s.userRepo.Delete(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		log.File.Error("Failed to delete user", zap.Int64("userID", id), zap.Error(err))
		return nil, err
	}

	log.Audit.Info("user.delete", zap.Int64("user_id", id), zap.Int64("deleted_by", callerID), zap.String("username", user.Username))
	return user, nil
}

// supplied returns the patch value when it is present and not blank.
func supplied(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return ""
	}
	return *s
}
