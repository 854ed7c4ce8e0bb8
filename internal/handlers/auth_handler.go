package handlers

import (
	mw "go-userapi/internal/middleware"
	"go-userapi/internal/pkg/validation"
	"go-userapi/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AuthHandler handles registration, login and logout.
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register handles POST /users/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req validation.RegisterInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	user, err := h.authService.Register(c.Context(), requestLoggers(c), req)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"data":    user,
	})
}

// Login handles POST /users/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req validation.LoginInput
	if ok, err := bindJSON(c, &req); !ok {
		return err
	}

	token, user, err := h.authService.Login(c.Context(), requestLoggers(c), req)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// Logout handles POST /users/logout. Tokens are stateless; clients discard them.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, _ := mw.GetUserID(c)
	mw.GetRequestFileLogger(c).Info("User logged out", zap.Int64("userID", userID))
	mw.GetRequestAuditLogger(c).Info("user.logout", zap.Int64("user_id", userID))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logout successful",
	})
}

// SetupAuthRoutes registers the public auth routes and the protected logout on users.
func (h *AuthHandler) SetupAuthRoutes(users fiber.Router, protected fiber.Handler) {
	users.Post("/register", h.Register)
	users.Post("/login", h.Login)
	users.Post("/logout", protected, h.Logout)
}
