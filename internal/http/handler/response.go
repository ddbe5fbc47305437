package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/service"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	"go.uber.org/zap"
)

// Envelope is the body of every dashboard response.
type Envelope struct {
	Error   bool   `json:"error"`
	Message any    `json:"message"`
	Relogin bool   `json:"relogin,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func ok(c *fiber.Ctx, message any) error {
	return c.JSON(Envelope{Message: message})
}

func created(c *fiber.Ctx, message any) error {
	return c.Status(fiber.StatusCreated).JSON(Envelope{Message: message})
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Error: true, Message: message})
}

// writeError maps service errors onto status codes. Backend messages are
// passed through untouched.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var (
		validation *model.ValidationError
		remote     *model.RemoteError
		render     *model.RenderFailure
		fiberErr   *fiber.Error
	)

	switch {
	case errors.As(err, &validation):
		return fail(c, fiber.StatusBadRequest, validation.Error())
	case errors.Is(err, model.ErrSessionExpired):
		return c.Status(fiber.StatusUnauthorized).JSON(Envelope{
			Error:   true,
			Message: model.ErrSessionExpired.Error(),
			Relogin: true,
		})
	case errors.Is(err, service.ErrLinkNotFound), errors.Is(err, service.ErrEditorNotFound):
		return fail(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &remote):
		logger.Warn("backend call failed", zap.Int("status", remote.StatusCode), zap.String("message", remote.Message), requestIDField(c))
		return fail(c, fiber.StatusBadGateway, remote.Message)
	case errors.As(err, &render):
		logger.Warn("render failed", zap.Error(err), requestIDField(c))
		return fail(c, fiber.StatusUnprocessableEntity, render.Error())
	case errors.As(err, &fiberErr):
		return fail(c, fiberErr.Code, fiberErr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		return fail(c, fiber.StatusGatewayTimeout, "request timed out")
	}

	logger.Error("request failed", zap.Error(err), zap.String("path", c.Path()), requestIDField(c))
	return fail(c, fiber.StatusInternalServerError, "internal server error")
}

func requestIDField(c *fiber.Ctx) zap.Field {
	if rid := middleware.RequestIDFrom(c); rid != "" {
		return zap.String("request_id", rid)
	}
	return zap.Skip()
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}
