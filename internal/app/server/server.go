package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/app/service"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/http/handler"
	"github.com/unsubstantiated-Script/chonker-chopper/internal/http/middleware"
	"go.uber.org/zap"
)

const minBodyLimit = 4 * 1024 * 1024

// Dependencies bundles what the HTTP server needs to serve requests.
type Dependencies struct {
	Logger    *zap.Logger
	Registry  prometheus.Registerer
	URLs      service.URLService
	Analytics *service.AnalyticsService
	Redirects handler.Resolver
	Probes    []handler.Probe

	BaseURL        string
	AllowOrigins   string
	ProxyHeader    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates the HTTP server with middleware and every route registered.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}

	app := fiber.New(fiber.Config{
		AppName:               "chonker-chopper",
		BodyLimit:             bodyLimit(deps.MaxUploadBytes),
		ReadTimeout:           deps.ReadTimeout,
		WriteTimeout:          deps.WriteTimeout,
		ProxyHeader:           deps.ProxyHeader,
		ErrorHandler:          handler.ErrorHandler,
		DisableStartupMessage: true,
	})

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerMiddleware()
	s.registerRoutes()
	return s
}

// App exposes the underlying fiber application.
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
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger, "/healthz", "/readyz"))
	s.app.Use(middleware.Metrics(s.deps.Registry))
	s.app.Use(middleware.CORS(s.deps.AllowOrigins))
}

func (s *Server) registerRoutes() {
	apiHandler := handler.NewAPIHandler(handler.APIDeps{
		Logger:    s.deps.Logger.Named("api"),
		URLs:      s.deps.URLs,
		Analytics: s.deps.Analytics,
		BaseURL:   s.deps.BaseURL,
	})
	apiHandler.Register(s.app)

	redirectHandler := handler.NewRedirectHandler(handler.RedirectDeps{
		Logger:   s.deps.Logger.Named("redirect"),
		Resolver: s.deps.Redirects,
		Probes:   s.deps.Probes,
	})
	redirectHandler.Register(s.app)
}

// bodyLimit leaves room for multipart framing around the largest accepted upload.
func bodyLimit(maxUpload int64) int {
	limit := int(maxUpload) + 1024*1024
	if limit < minBodyLimit {
		return minBodyLimit
	}
	return limit
}
