package middleware

import (
	"errors"
	"strings"

	"go-userapi/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// 401 codes returned by Protected.
const (
	CodeAuthorizationRequired = "authorization_required"
	CodeInvalidToken          = "invalid_token"
	CodeTokenExpired          = "token_expired"
)

func unauthorized(c *fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"code":    code,
	})
}

// Protected rejects requests without a valid bearer token and stores the
// caller's user id under UserIDKey.
func Protected(tm *utils.TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		logger := GetRequestFileLogger(c)

		authHeader := strings.TrimSpace(c.Get(AuthorizationHeader))
		if authHeader == "" {
			logger.Warn("Missing Authorization header")
			return unauthorized(c, "Request does not contain an access token", CodeAuthorizationRequired)
		}
		if len(authHeader) < len(BearerPrefix) || !strings.EqualFold(authHeader[:len(BearerPrefix)], BearerPrefix) {
			logger.Warn("Invalid Authorization header format")
			return unauthorized(c, "Authorization header must be a Bearer token", CodeAuthorizationRequired)
		}

		tokenString := strings.TrimSpace(authHeader[len(BearerPrefix):])
		userID, err := tm.Verify(tokenString)
		switch {
		case err == nil:
		case errors.Is(err, utils.ErrTokenMissing):
			logger.Warn("Empty token string after Bearer prefix")
			return unauthorized(c, "Request does not contain an access token", CodeAuthorizationRequired)
		case errors.Is(err, utils.ErrTokenExpired):
			logger.Info("Expired JWT token")
			return unauthorized(c, "The token has expired", CodeTokenExpired)
		default:
			logger.Warn("Invalid JWT token", zap.Error(err))
			return unauthorized(c, "Signature verification failed", CodeInvalidToken)
		}

		c.Locals(UserIDKey, userID)
		logger.Debug("JWT validated successfully", zap.Int64("userID", userID))
		return c.Next()
	}
}

// GetUserID returns the authenticated user id set by Protected.
func GetUserID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(UserIDKey).(int64)
	return id, ok && id > 0
}
