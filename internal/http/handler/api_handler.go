package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	Guard       *service.SessionGuard
	LinkService service.LinkService
	Admin       *service.AdminService
}

// APIHandler implements login, link and account endpoints.
type APIHandler struct {
	logger      *zap.Logger
	guard       *service.SessionGuard
	linkService service.LinkService
	admin       *service.AdminService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		guard:       deps.Guard,
		linkService: deps.LinkService,
		admin:       deps.Admin,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	auth := router.Group("/auth")
	{
		auth.Post("/login", h.Login)
		auth.Post("/logout", h.Logout)
	}

	router.Get("/me", h.Me)
	router.Post("/account/password", h.ChangePassword)

	links := router.Group("/links")
	{
		links.Get("/", h.ListLinks)
		links.Get("/:id", h.GetLink)
		links.Post("/:id/delete", h.DeleteLink)
	}
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse reports when the new session stops being valid.
type LoginResponse struct {
	ExpiresAt int64 `json:"expiresAt"`
}

// Login handles POST /auth/login
func (h *APIHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	session, err := h.guard.Login(requestContext(c), req.Username, req.Password)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, LoginResponse{ExpiresAt: session.ExpiresAt})
}

// Logout handles POST /auth/logout
func (h *APIHandler) Logout(c *fiber.Ctx) error {
	if err := h.guard.Logout(requestContext(c)); err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, "logged out")
}

// Me handles GET /me
func (h *APIHandler) Me(c *fiber.Ctx) error {
	user, err := h.admin.Me(requestContext(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, user)
}

// PasswordRequest carries a new plain-text password; it is hashed server side.
type PasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword handles POST /account/password
func (h *APIHandler) ChangePassword(c *fiber.Ctx) error {
	var req PasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.admin.ChangeOwnPassword(requestContext(c), req.Password); err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, "password changed")
}

// ListLinks handles GET /links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	links, err := h.linkService.ListLinks(requestContext(c))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, links)
}

// GetLink handles GET /links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return writeError(c, h.logger, model.NewValidationError("linkid", "linkid is required"))
	}
	link, err := h.linkService.GetLink(requestContext(c), id)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, link)
}

// DeleteLink handles POST /links/:id/delete
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.linkService.DeleteLink(requestContext(c), id); err != nil {
		return writeError(c, h.logger, err)
	}
	h.logger.Info("link deleted", zap.String("link_id", id))
	return ok(c, "link deleted")
}
