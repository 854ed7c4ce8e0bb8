package handlers

import (
	"encoding/json"
	"errors"

	mw "go-userapi/internal/middleware"
	"go-userapi/internal/pkg/validation"
	"go-userapi/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	msgNoJSON      = "No JSON data provided"
	msgInvalidBody = "Invalid request body"
)

func requestLoggers(c *fiber.Ctx) services.Loggers {
	return services.Loggers{
		File:  mw.GetRequestFileLogger(c),
		Audit: mw.GetRequestAuditLogger(c),
	}
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}

// bindJSON decodes the request body into out. An empty body or an empty
// object is rejected like a missing one. It returns false once a 400 has been sent.
func bindJSON(c *fiber.Ctx, out interface{}) (bool, error) {
	body := c.Body()
	var probe map[string]json.RawMessage
	if len(body) == 0 || json.Unmarshal(body, &probe) != nil {
		if len(body) == 0 {
			return false, errorJSON(c, fiber.StatusBadRequest, msgNoJSON)
		}
		mw.GetRequestFileLogger(c).Warn("Request body is not a JSON object")
		return false, errorJSON(c, fiber.StatusBadRequest, msgInvalidBody)
	}
	if len(probe) == 0 {
		return false, errorJSON(c, fiber.StatusBadRequest, msgNoJSON)
	}
	if err := json.Unmarshal(body, out); err != nil {
		mw.GetRequestFileLogger(c).Warn("Failed to decode request body", zap.Error(err))
		return false, errorJSON(c, fiber.StatusBadRequest, msgInvalidBody)
	}
	return true, nil
}

// writeServiceError maps service errors to responses. Anything unrecognised
// is returned to the app ErrorHandler, which answers 500.
func writeServiceError(c *fiber.Ctx, err error) error {
	var ferr *validation.FieldError
	switch {
	case errors.As(err, &ferr):
		return errorJSON(c, fiber.StatusBadRequest, ferr.Message)
	case errors.Is(err, services.ErrUserExists):
		return errorJSON(c, fiber.StatusConflict, "Username or email is already registered")
	case errors.Is(err, services.ErrInvalidCredentials):
		return errorJSON(c, fiber.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, services.ErrUserNotFound):
		return errorJSON(c, fiber.StatusNotFound, "User not found")
	case errors.Is(err, services.ErrSelfDelete):
		return errorJSON(c, fiber.StatusBadRequest, "You cannot delete your own account")
	}
	return err
}
