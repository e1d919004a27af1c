// Package server runs the mock campus API used for local development and
// end-to-end tests of the client.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuscreatives/internal/config"
	"campuscreatives/internal/handlers"
	"campuscreatives/internal/observability"
	"campuscreatives/internal/store"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

const (
	shutdownTimeout = 5 * time.Second
	bodyLimit       = 6 << 20
	requestsPerMin  = 300
)

// Server is the mock API application.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	handlers       *handlers.Handlers
	registry       *prometheus.Registry
	promMiddleware *fiberprometheus.FiberPrometheus
	app            *fiber.App
}

// NewServer migrates db and builds the fiber app. Revoked refresh tokens are
// remembered in cache.
func NewServer(cfg *config.Config, db *gorm.DB, cache store.Store) (*Server, error) {
	if err := handlers.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate mock api schema: %w", err)
	}

	registry := prometheus.NewRegistry()
	tokens := handlers.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL(), cfg.RefreshTokenTTL())

	s := &Server{
		config:         cfg,
		db:             db,
		handlers:       handlers.New(db, tokens, cache),
		registry:       registry,
		promMiddleware: fiberprometheus.NewWithRegistry(registry, "campus-mockapi", "campus", "mockapi", nil),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Campus Creatives Mock API",
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return s, nil
}

// App returns the fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(contextMiddleware())
	app.Use(s.promMiddleware.Middleware)
	app.Use(structuredLogger())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        requestsPerMin,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"detail": "Request was throttled.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/healthz", s.LivenessCheck)

	gatherers := prometheus.Gatherers{s.registry, prometheus.DefaultGatherer}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})))

	s.handlers.Mount(app.Group("/api"))
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports whether the database answers a ping.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if sqlDB, err := s.db.DB(); err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	status := fiber.StatusOK
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   dbStatus,
		"database": dbStatus,
	})
}

// Run serves on addr until SIGINT or SIGTERM.
func (s *Server) Run(addr string) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	return s.RunWithQuit(addr, quit)
}

// RunWithQuit behaves like Run but stops when quit receives, which lets
// tests drive shutdown.
func (s *Server) RunWithQuit(addr string, quit <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		observability.Logger.Info("mock api listening", slog.String("addr", addr))
		errCh <- s.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	observability.Logger.Info("shutting down mock api")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
