package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/model"
	"github.com/sifan077/PowerQR/internal/app/service"
	"go.uber.org/zap"
)

// DefaultMaxLogoBytes bounds uploaded logo files.
const DefaultMaxLogoBytes = 2 << 20

// EditorDeps groups dependencies required by editor handlers.
type EditorDeps struct {
	Logger       *zap.Logger
	Editor       *service.EditorService
	MaxLogoBytes int64
	// ExportLimiter, when set, runs in front of every export route.
	ExportLimiter fiber.Handler
}

// EditorHandler serves QR editor sessions and saved-link exports.
type EditorHandler struct {
	logger       *zap.Logger
	editor       *service.EditorService
	maxLogoBytes int64
	limiter      fiber.Handler
}

// NewEditorHandler creates an editor handler with the provided dependencies.
func NewEditorHandler(deps EditorDeps) *EditorHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxLogo := deps.MaxLogoBytes
	if maxLogo <= 0 {
		maxLogo = DefaultMaxLogoBytes
	}
	limiter := deps.ExportLimiter
	if limiter == nil {
		limiter = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &EditorHandler{
		logger:       logger,
		editor:       deps.Editor,
		maxLogoBytes: maxLogo,
		limiter:      limiter,
	}
}

// Register wires editor routes onto the provided router.
func (h *EditorHandler) Register(router fiber.Router) {
	router.Get("/links/:id/qr.:format", h.limiter, h.ExportLink)

	editor := router.Group("/editor")
	{
		editor.Post("/", h.Open)
		editor.Get("/:sid", h.Get)
		editor.Patch("/:sid", h.Update)
		editor.Delete("/:sid", h.Close)
		editor.Post("/:sid/reset", h.Reset)
		editor.Post("/:sid/logo", h.UploadLogo)
		editor.Get("/:sid/preview", h.Preview)
		editor.Get("/:sid/export", h.limiter, h.Export)
		editor.Post("/:sid/save", h.Save)
	}
}

// OpenEditorRequest selects the link to edit. No linkid opens a new-link draft.
type OpenEditorRequest struct {
	LinkID string `json:"linkid"`
}

// Open handles POST /editor
func (h *EditorHandler) Open(c *fiber.Ctx) error {
	var req OpenEditorRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid request body")
		}
	}
	snap, err := h.editor.Open(requestContext(c), req.LinkID)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return created(c, snap)
}

// Get handles GET /editor/:sid
func (h *EditorHandler) Get(c *fiber.Ctx) error {
	snap, err := h.editor.Get(c.Params("sid"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, snap)
}

// Update handles PATCH /editor/:sid
func (h *EditorHandler) Update(c *fiber.Ctx) error {
	var upd service.EditorUpdate
	if err := c.BodyParser(&upd); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	snap, err := h.editor.Update(requestContext(c), c.Params("sid"), upd)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, snap)
}

// Reset handles POST /editor/:sid/reset
func (h *EditorHandler) Reset(c *fiber.Ctx) error {
	snap, err := h.editor.Reset(requestContext(c), c.Params("sid"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, snap)
}

// UploadLogo handles POST /editor/:sid/logo with a multipart "logo" file.
func (h *EditorHandler) UploadLogo(c *fiber.Ctx) error {
	fh, err := c.FormFile("logo")
	if err != nil {
		return writeError(c, h.logger, model.NewValidationError("logo", "logo file is required"))
	}
	if fh.Size > h.maxLogoBytes {
		return writeError(c, h.logger, model.NewValidationError("logo", fmt.Sprintf("logo exceeds %d bytes", h.maxLogoBytes)))
	}

	f, err := fh.Open()
	if err != nil {
		return writeError(c, h.logger, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxLogoBytes+1))
	if err != nil {
		return writeError(c, h.logger, err)
	}

	mime := fh.Header.Get(fiber.HeaderContentType)
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}

	snap, err := h.editor.SetLogo(requestContext(c), c.Params("sid"), mime, data)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, snap)
}

// Preview handles GET /editor/:sid/preview
func (h *EditorHandler) Preview(c *fiber.Ctx) error {
	data, err := h.editor.PreviewImage(requestContext(c), c.Params("sid"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	c.Type("png")
	return c.Send(data)
}

// Export handles GET /editor/:sid/export?format=&size=
func (h *EditorHandler) Export(c *fiber.Ctx) error {
	format, size, err := exportParams(c, c.Query("format"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	art, err := h.editor.Export(requestContext(c), c.Params("sid"), format, size)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return sendArtifact(c, "qrcode", art)
}

// ExportLink handles GET /links/:id/qr.:format?size=
func (h *EditorHandler) ExportLink(c *fiber.Ctx) error {
	id := c.Params("id")
	format, size, err := exportParams(c, c.Params("format"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	art, err := h.editor.ExportLink(requestContext(c), id, format, size)
	if err != nil {
		return writeError(c, h.logger, err)
	}
	return sendArtifact(c, "qrcode-"+id, art)
}

// Save handles POST /editor/:sid/save
func (h *EditorHandler) Save(c *fiber.Ctx) error {
	snap, err := h.editor.Save(requestContext(c), c.Params("sid"))
	if err != nil {
		return writeError(c, h.logger, err)
	}
	h.logger.Info("link saved", zap.String("editor", snap.ID), zap.Stringer("save", snap.Save))
	return ok(c, snap)
}

// Close handles DELETE /editor/:sid
func (h *EditorHandler) Close(c *fiber.Ctx) error {
	if err := h.editor.Close(c.Params("sid")); err != nil {
		return writeError(c, h.logger, err)
	}
	return ok(c, "editor closed")
}

// exportParams reads the format and the optional positive size. A missing
// size means the preview's own size.
func exportParams(c *fiber.Ctx, rawFormat string) (model.ImageFormat, int, error) {
	format, err := model.ParseImageFormat(rawFormat)
	if err != nil {
		return "", 0, err
	}
	raw := c.Query("size")
	if raw == "" {
		return format, 0, nil
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return "", 0, model.NewValidationError("size", "size must be a positive integer")
	}
	return format, size, nil
}

func sendArtifact(c *fiber.Ctx, name string, art *service.Artifact) error {
	c.Set(fiber.HeaderContentType, art.Format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.%s"`, name, art.Format))
	c.Set("X-QR-Size", strconv.Itoa(art.SizePx))
	return c.Send(art.Data)
}
