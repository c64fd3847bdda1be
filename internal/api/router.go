package api

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/genetics-tutor/backend/internal/api/handlers"
	"github.com/genetics-tutor/backend/internal/catalog"
	"github.com/genetics-tutor/backend/internal/metrics"
	"github.com/genetics-tutor/backend/internal/middleware/ratelimit"
	"github.com/genetics-tutor/backend/internal/middleware/security"
	"github.com/genetics-tutor/backend/internal/middleware/validation"
	"github.com/genetics-tutor/backend/internal/tutor"
)

type Deps struct {
	Engine      *tutor.Engine
	Catalog     *catalog.Catalog
	ReadyChecks map[string]handlers.ReadyCheck
	// RateLimiter is optional; nil disables limiting.
	RateLimiter *ratelimit.RateLimiter

	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	BodyLimit        int
	MaxMessageLength int
	AllowedOrigins   []string
	Development      bool
	// RequestLogging turns on the per-request access log.
	RequestLogging bool
}

// NewApp builds the HTTP surface: chat, sessions, topics, health and the
// streaming socket.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Genetics Tutor",
		ReadTimeout:  deps.ReadTimeout,
		WriteTimeout: deps.WriteTimeout,
		BodyLimit:    deps.BodyLimit,
	})

	app.Use(recover.New())
	if deps.RequestLogging {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(deps.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + ratelimit.UserHeader,
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: deps.AllowedOrigins,
		IsDevelopment:  deps.Development,
	}))

	healthHandler := handlers.NewHealthHandler(deps.ReadyChecks)
	app.Get("/api/health", healthHandler.Health)
	app.Get("/api/ready", healthHandler.Ready)
	app.Get("/metrics", metrics.MetricsHandler())

	chatHandler := handlers.NewChatHandler(deps.Engine)
	sessionHandler := handlers.NewSessionHandler(deps.Engine)
	topicHandler := handlers.NewTopicHandler(deps.Catalog)
	wsHandler := handlers.NewWebSocketHandler(deps.Engine)

	apiGroup := app.Group("/api")
	if deps.RateLimiter != nil {
		apiGroup.Use(deps.RateLimiter.Middleware())
	}
	apiGroup.Use(validation.Middleware(validation.Config{
		MaxMessageLength: deps.MaxMessageLength,
	}))

	apiGroup.Post("/chat", chatHandler.HandleChat)

	apiGroup.Post("/session", sessionHandler.StartSession)
	apiGroup.Get("/session/:id", sessionHandler.GetSession)
	apiGroup.Delete("/session/:id", sessionHandler.ResetSession)
	apiGroup.Get("/session/:id/context", sessionHandler.GetContext)
	apiGroup.Get("/session/:id/records", sessionHandler.GetRecords)

	apiGroup.Get("/topics", topicHandler.ListTopics)
	apiGroup.Get("/topics/:id", topicHandler.GetTopic)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/chat", websocket.New(wsHandler.HandleConnection))

	return app
}
