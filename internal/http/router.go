package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docflow/internal/broker"
	"docflow/internal/config"
	"docflow/internal/dispatch"
	"docflow/internal/metrics"
	"docflow/internal/ollama"
	"docflow/internal/status"
	"docflow/internal/storage"
)

// Deps bundles everything the handlers need. Injected via locals so
// handlers stay plain functions.
type Deps struct {
	Storage    *storage.Storage
	Dispatcher *dispatch.Dispatcher
	Files      *status.FileTracker
	Models     *status.ModelTracker
	Ollama     *ollama.Client
	Redis      *redis.Client
	Broker     *broker.Connection
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit: 64 * 1024 * 1024, // uploaded PDFs
	})

	// Inject dependencies into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("deps", deps)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		// Ensure a request ID exists
		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Health endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		// Shallow health: process is up
		if c.Query("deep") != "true" {
			return c.JSON(fiber.Map{"status": "ok"})
		}

		// Deep health: check redis and broker connectivity.
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		redisStatus := "ok"
		if deps.Redis == nil || deps.Redis.Ping(ctx).Err() != nil {
			redisStatus = "error"
		}

		brokerStatus := "ok"
		if deps.Broker == nil || !deps.Broker.Connected() {
			brokerStatus = "error"
		}

		overall := "ok"
		if redisStatus != "ok" || brokerStatus != "ok" {
			overall = "error"
		}

		return c.JSON(fiber.Map{
			"status": overall,
			"redis":  redisStatus,
			"broker": brokerStatus,
		})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	registerRoutes(app)

	return &Server{
		app:    app,
		config: cfg,
		logger: logger,
	}
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func registerRoutes(app *fiber.App) {
	app.Post("/upload", uploadHandler)
	app.Post("/process/:id", processHandler)
	app.Get("/progress/:id", progressHandler)
	app.Get("/content/:id", contentHandler)

	app.Post("/model/pull", modelPullHandler)
	app.Get("/model/progress/:name", modelProgressHandler)
	app.Get("/model/downloads", modelDownloadsHandler)
	app.Get("/models", modelsHandler)
}

func deps(c *fiber.Ctx) Deps {
	d, _ := c.Locals("deps").(Deps)
	return d
}
