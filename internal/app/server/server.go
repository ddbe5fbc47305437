package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerQR/internal/app/service"
	inthttp "github.com/sifan077/PowerQR/internal/http/handler"
	"github.com/sifan077/PowerQR/internal/http/middleware"
	"go.uber.org/zap"
)

// Options tunes the Fiber application.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
	CORSOrigins  []string
	MaxLogoBytes int64
}

// Dependencies bundles the services and probes required by the HTTP server.
type Dependencies struct {
	Logger  *zap.Logger
	Guard   *service.SessionGuard
	Links   service.LinkService
	Admin   *service.AdminService
	Editor  *service.EditorService
	Checks  map[string]inthttp.CheckFunc
	Options Options
	// ExportLimiter guards the export routes; nil disables limiting.
	ExportLimiter fiber.Handler
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with all dashboard routes.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "PowerQR",
		ReadTimeout:           deps.Options.ReadTimeout,
		WriteTimeout:          deps.Options.WriteTimeout,
		BodyLimit:             deps.Options.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerMiddleware() {
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS(s.deps.Options.CORSOrigins))
}

func (s *Server) registerRoutes() {
	inthttp.NewHealthHandler(inthttp.HealthDeps{
		Logger: s.deps.Logger,
		Checks: s.deps.Checks,
	}).Register(s.app)

	inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:      s.deps.Logger,
		Guard:       s.deps.Guard,
		LinkService: s.deps.Links,
		Admin:       s.deps.Admin,
	}).Register(s.app)

	inthttp.NewAdminHandler(s.deps.Admin, s.deps.Logger).Register(s.app)

	inthttp.NewEditorHandler(inthttp.EditorDeps{
		Logger:        s.deps.Logger,
		Editor:        s.deps.Editor,
		MaxLogoBytes:  s.deps.Options.MaxLogoBytes,
		ExportLimiter: s.deps.ExportLimiter,
	}).Register(s.app)
}

// errorHandler answers errors that escaped a handler, such as unknown routes
// or oversized bodies, with the usual envelope.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("unhandled error", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(inthttp.Envelope{Error: true, Message: message})
	}
}
