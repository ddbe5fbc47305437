package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/service"
	"go.uber.org/zap"
)

// AdminHandler serves account management and the site-wide overview.
type AdminHandler struct {
	logger *zap.Logger
	admin  *service.AdminService
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(admin *service.AdminService, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{logger: logger, admin: admin}
}

// Register wires admin routes onto the provided router.
func (h *AdminHandler) Register(router fiber.Router) {
	admin := router.Group("/admin")
	{
		admin.Get("/overview", h.Overview)
		admin.Post("/users", h.CreateUser)
		admin.Post("/users/:username/delete", h.DeleteUser)
		admin.Post("/users/:username/password", h.ResetPassword)
	}
}

// OverviewResponse is whatever part of the overview could be loaded.
type OverviewResponse struct {
	Links []service.LinkView `json:"links"`
	Users []model.User       `json:"users"`
}

// Overview handles GET /admin/overview. A failed half is reported in the
// warning field; the other half is still returned.
func (h *AdminHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.admin.LoadOverview(requestContext(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	resp := Envelope{Message: OverviewResponse{Links: overview.Links, Users: overview.Users}}
	if overview.Err != nil {
		resp.Warning = overview.Err.Error()
	}
	return c.JSON(resp)
}

// CreateUserRequest is the body of POST /admin/users.
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Level    *int   `json:"level,omitempty"`
}

// CreateUser handles POST /admin/users
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	err := h.admin.CreateUser(requestContext(c), service.CreateUserInput{
		Username: req.Username,
		Password: req.Password,
		Level:    req.Level,
	})
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return created(c, "user created")
}

// DeleteUser handles POST /admin/users/:username/delete
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	if err := h.admin.DeleteUser(requestContext(c), c.Params("username")); err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, "user deleted")
}

// ResetPassword handles POST /admin/users/:username/password
func (h *AdminHandler) ResetPassword(c *fiber.Ctx) error {
	var req PasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.admin.ResetPassword(requestContext(c), c.Params("username"), req.Password); err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, "password reset")
}
