// Package web serves the operator UI, the JSON command API and the
// control and status WebSockets.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-rover/pkg/gateway"
	"github.com/teslashibe/go-rover/pkg/hub"
	"github.com/teslashibe/go-rover/pkg/watchdog"
)

// DefaultStatusInterval is how often a status snapshot is pushed to
// /ws/status subscribers.
const DefaultStatusInterval = time.Second

// Config holds the server settings.
type Config struct {
	Addr           string
	StaticDir      string
	Debug          bool
	StatusInterval time.Duration
	Version        string
}

// Server is the operator-facing HTTP and WebSocket server
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	gateway  *gateway.Gateway
	watchdog *watchdog.Watchdog
	tracker  watchdog.Ager

	// Hub for /ws/status broadcast
	statusHub *hub.Hub

	started time.Time

	controlSessions atomic.Int64
	controlMessages atomic.Uint64
}

// NewServer creates the server and registers every route.
func NewServer(cfg Config, gw *gateway.Gateway, wd *watchdog.Watchdog, tracker watchdog.Ager, logger *slog.Logger) (*Server, error) {
	if gw == nil || wd == nil || tracker == nil {
		return nil, errors.New("web server needs a gateway, a watchdog and a tracker")
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.With("component", "web"),
		gateway:   gw,
		watchdog:  wd,
		tracker:   tracker,
		statusHub: hub.New("status", logger),
		started:   time.Now(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-rover",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.Debug {
		app.Use(fiberlogger.New())
	}

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	// API routes
	api := app.Group("/api")
	api.Post("/drive", s.command(gateway.OpDrive))
	api.Post("/arcade", s.command(gateway.OpArcade))
	api.Post("/head", s.command(gateway.OpHead))
	api.Post("/waist", s.command(gateway.OpWaist))
	api.Post("/say", s.command(gateway.OpSay))
	api.Post("/stop", s.command(gateway.OpStop))
	api.Get("/status", s.handleStatus)
	api.Get("/phrases", s.handlePhrases)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/control", websocket.New(s.handleControlWS))
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	// Operator UI
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir, fiber.Static{Index: "index.html"})
	}

	s.app = app
	return s, nil
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the status hub and serves until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go s.statusHub.Run(hubCtx)
	go s.publishStatus(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr, "static", s.cfg.StaticDir)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

// handleError renders fiber errors as {"ok":false,"error":...}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"ok": false, "error": err.Error()})
}
