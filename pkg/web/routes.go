package web

import (
	"github.com/gofiber/fiber/v3"
)

// requireOwner rejects requests that do not identify a calling user.
func requireOwner(c fiber.Ctx) error {
	if c.Get(ownerHeader) == "" {
		return unauthorized(c, ownerHeader+" header is required")
	}

	return c.Next()
}

// RegisterRoutes mounts all API routes on the given app. Health and
// webhook ingestion are unauthenticated; everything else requires the
// owner header.
func RegisterRoutes(app *fiber.App, handlers *APIHandlers) {
	app.Get("/health", handlers.HealthCheck)
	app.Post("/webhooks/:integration", handlers.IngestWebhook)

	workflows := app.Group("/workflows", requireOwner)
	workflows.Post("/", handlers.CreateWorkflow)
	workflows.Get("/", handlers.GetWorkflows)
	workflows.Get("/:id", handlers.GetWorkflow)
	workflows.Patch("/:id", handlers.UpdateWorkflow)
	workflows.Delete("/:id", handlers.DeleteWorkflow)

	workflows.Post("/:id/steps", handlers.AddStep)
	workflows.Patch("/:id/steps/:stepId", handlers.UpdateStep)
	workflows.Delete("/:id/steps/:stepId", handlers.RemoveStep)

	workflows.Post("/:id/deploy", handlers.DeployWorkflow)
	workflows.Post("/:id/execute", handlers.ExecuteWorkflow)
	workflows.Post("/:id/pause", handlers.PauseWorkflow)
	workflows.Post("/:id/resume", handlers.ResumeWorkflow)
	workflows.Get("/:id/webhook-url", handlers.GetWebhookURL)
	workflows.Get("/:id/executions", handlers.GetExecutions)

	executions := app.Group("/executions", requireOwner)
	executions.Get("/:id", handlers.GetExecutionStatus)
}
