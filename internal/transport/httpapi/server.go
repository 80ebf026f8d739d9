package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/k1rl3s/chess-bot-go/pkg/gamedto"
)

// NewApp wires the HTTP surface of the bot backend. Consumers are the
// chat frontend and operator tooling; everything speaks JSON.
func NewApp(h *Handler, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	app.Get("/health", h.Health)

	api := app.Group("/api/v1")
	api.Post("/users", h.RegisterUser)
	api.Get("/users/:id/settings", h.GetSettings)
	api.Patch("/users/:id/settings", h.PatchSettings)
	api.Get("/users/:id/stats", h.GetStats)
	api.Post("/users/:id/sessions", h.StartSession)
	api.Get("/users/:id/sessions/active", h.ActiveSession)
	api.Put("/users/:id/sessions/active", h.AdvanceSession)
	api.Delete("/users/:id/sessions/active", h.StopSession)
	api.Get("/leaderboard", h.Leaderboard)

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(gamedto.DomainError{
		Code:    "internal_error",
		Message: err.Error(),
	})
}
