package web

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/graph"
	"github.com/Butcher-11/SuperAI/pkg/limiter"
	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
	"github.com/Butcher-11/SuperAI/pkg/workflow"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func unauthorized(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(401).
		WithInstance(c.Path()).
		WithType("unauthorized").
		WithDetail(detail)

	return c.Status(fiber.StatusUnauthorized).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, errType, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleDomainError maps orchestrator and engine errors to problem responses.
func handleDomainError(c fiber.Ctx, err error) error {
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		return badRequest(c, err.Error())

	case workflow.IsWorkflowNotFound(err):
		return notFound(c, "workflow not found")

	case errors.Is(err, persistence.ErrExecutionNotFound):
		return notFound(c, "execution not found")

	case errors.Is(err, persistence.ErrStepNotFound):
		return notFound(c, "step not found")

	case models.IsInvalidStep(err), errors.Is(err, graph.ErrInvalidCronExpression),
		errors.Is(err, workflow.ErrNotWebhookTriggered):
		return badRequest(c, err.Error())

	case workflow.IsWorkflowAlreadyActive(err):
		return conflict(c, "workflow_already_active", err.Error())

	case workflow.IsWorkflowNotActive(err):
		return conflict(c, "workflow_not_active", err.Error())

	case errors.Is(err, workflow.ErrWorkflowNotPaused):
		return conflict(c, "workflow_not_paused", err.Error())

	case engine.IsWorkflowNotDeployed(err):
		return conflict(c, "workflow_not_deployed", err.Error())

	case limiter.IsLimitReached(err):
		problem := problems.NewStatusProblem(429).
			WithInstance(c.Path()).
			WithType("concurrency_limit_reached").
			WithDetail(err.Error())

		return c.Status(fiber.StatusTooManyRequests).JSON(problem)

	case engine.IsEngineUnavailable(err), engine.IsEngineRejected(err):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("engine_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}
