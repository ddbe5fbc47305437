package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// HealthDeps groups the readiness probes.
type HealthDeps struct {
	Logger  *zap.Logger
	Checks  map[string]CheckFunc
	Timeout time.Duration
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	logger  *zap.Logger
	checks  map[string]CheckFunc
	timeout time.Duration
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(deps HealthDeps) *HealthHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HealthHandler{logger: logger, checks: deps.Checks, timeout: timeout}
}

// Register wires health routes onto the provided router.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

// Health is a simple root endpoint so we know the service is running.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return ok(c, fiber.Map{
		"service": "PowerQR",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// CheckResult is the outcome of one readiness probe.
type CheckResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Ready runs every probe concurrently and answers 503 if any failed.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(requestContext(c), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]CheckResult, 0, len(h.checks))
	)
	for name, check := range h.checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			res := CheckResult{Name: name, OK: true}
			if err := check(ctx); err != nil {
				res.OK = false
				res.Error = err.Error()
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	ready := true
	for _, r := range results {
		if !r.OK {
			ready = false
			h.logger.Warn("readiness check failed", zap.String("check", r.Name), zap.String("error", r.Error))
		}
	}
	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(Envelope{Error: true, Message: results})
	}
	return ok(c, results)
}
