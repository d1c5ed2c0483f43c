// Package main provides the SuperAI workflow API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/eventbus"
	"github.com/Butcher-11/SuperAI/pkg/limiter"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
	"github.com/Butcher-11/SuperAI/pkg/tracker"
	"github.com/Butcher-11/SuperAI/pkg/web"
	"github.com/Butcher-11/SuperAI/pkg/webhook"
	"github.com/Butcher-11/SuperAI/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Client
	limiter     limiter.Limiter
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	engineClient *engine.Client,
	executionLimiter limiter.Limiter,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		engine:      engineClient,
		limiter:     executionLimiter,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	executionTracker := tracker.NewTracker(a.persistence.ExecutionRepository(), a.engine)
	orchestrator := workflow.NewOrchestrator(a.persistence, a.engine, executionTracker, a.limiter, a.eventBus)
	dispatcher := webhook.NewDispatcher(a.persistence.WorkflowRepository(), orchestrator, a.eventBus)

	handlers := web.NewAPIHandlers(orchestrator, executionTracker, dispatcher, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("SuperAI Workflow API")
	})

	web.RegisterRoutes(app, handlers)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
