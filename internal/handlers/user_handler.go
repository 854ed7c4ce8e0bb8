package handlers

import (
	mw "go-userapi/internal/middleware"
	"go-userapi/internal/models"
	"go-userapi/internal/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserHandler handles the token-guarded user routes.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List handles GET /users?page=&per_page=&search=
func (h *UserHandler) List(c *fiber.Ctx) error {
	q := services.ListQuery{
		Page:    c.QueryInt("page", 1),
		PerPage: c.QueryInt("per_page", services.DefaultPerPage),
		Search:  c.Query("search"),
	}

	res, err := h.userService.List(c.Context(), requestLoggers(c), q)
	if err != nil {
		return writeServiceError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":  "Users retrieved successfully",
		"data":     res.Items,
		"total":    res.Total,
		"page":     res.Page,
		"per_page": res.PerPage,
	})
}

// GetByID handles GET /users/:id
func (h *UserHandler) GetByID(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	return h.get(c, id)
}

// GetMe handles GET /users/me
func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID, ok := mw.GetUserID(c)
	if !ok {
		mw.GetRequestFileLogger(c).Error("User ID missing from locals after JWT validation")
		return fiber.ErrUnauthorized
	}
	return h.get(c, userID)
}

func (h *UserHandler) get(c *fiber.Ctx, id int64) error {
	user, err := h.userService.Get(c.Context(), requestLoggers(c), id)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "User retrieved successfully",
		"data":    user,
	})
}

// Update handles PUT /users/:id
func (h *UserHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var patch models.UserPatch
	if ok, err := bindJSON(c, &patch); !ok {
		return err
	}

	user, err := h.userService.Update(c.Context(), requestLoggers(c), id, patch)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "User updated successfully",
		"data":    user,
	})
}

// Delete handles DELETE /users/:id
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	callerID, ok := mw.GetUserID(c)
	if !ok {
		mw.GetRequestFileLogger(c).Error("User ID missing from locals after JWT validation")
		return fiber.ErrUnauthorized
	}

	user, err := h.userService.Delete(c.Context(), requestLoggers(c), callerID, id)
	if err != nil {
		return writeServiceError(c, err)
	}
	mw.GetRequestFileLogger(c).Info("User deleted", zap.Int64("userID", id), zap.Int64("callerID", callerID))
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "User deleted successfully",
		"data":    user,
	})
}

// pathID reads :id. The route constraint already guarantees an integer.
func pathID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.ErrNotFound
	}
	return int64(id), nil
}

// SetupUserRoutes registers the protected user routes on users.
func (h *UserHandler) SetupUserRoutes(users fiber.Router, protected fiber.Handler) {
	users.Get("", protected, h.List)
	users.Get("/me", protected, h.GetMe)
	users.Get("/:id<int>", protected, h.GetByID)
	users.Put("/:id<int>", protected, h.Update)
	users.Delete("/:id<int>", protected, h.Delete)
}
