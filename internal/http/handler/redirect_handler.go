package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/repository"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/service"
	"go.uber.org/zap"
)

const probeTimeout = 2 * time.Second

// Resolver turns a short code into its original URL, recording the click on the way.
type Resolver interface {
	Resolve(ctx context.Context, code string, meta service.RequestMetadata) (string, error)
}

// Probe is one named readiness check.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver Resolver
	Probes   []Probe
}

// RedirectHandler serves short-code redirects and the health endpoints.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver Resolver
	probes   []Probe
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
		probes:   deps.Probes,
	}
}

// Register wires redirect routes onto the provided router. It must be registered after
// every static route since /:code matches any single segment.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/healthz", h.Health)
	router.Get("/readyz", h.Ready)
	router.Get("/:code", h.Redirect)
}

// Health reports that the process is serving.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "chonker-chopper",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready runs every probe and reports 503 with the names of those that failed.
func (h *RedirectHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(userContext(c), probeTimeout)
	defer cancel()

	failed := make([]string, 0)
	for _, p := range h.probes {
		if err := p.Check(ctx); err != nil {
			h.logger.Warn("readiness probe failed", zap.String("probe", p.Name), zap.Error(err))
			failed = append(failed, p.Name)
		}
	}

	if len(failed) > 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
			"failed": failed,
		})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// Redirect handles GET /:code with a 302 to the original URL.
func (h *RedirectHandler) Redirect(c *fiber.Ctx) error {
	code := c.Params("code")

	target, err := h.resolver.Resolve(userContext(c), code, service.RequestMetadata{
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referrer:  c.Get(fiber.HeaderReferer),
	})
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "URL not found"})
		}
		h.logger.Error("failed to resolve short code", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal Server Error"})
	}

	h.logger.Debug("redirecting short link", zap.String("code", code), zap.String("target", target))
	return c.Redirect(target, fiber.StatusFound)
}
