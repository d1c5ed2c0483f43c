package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/Butcher-11/SuperAI/pkg/tracker"
	"github.com/Butcher-11/SuperAI/pkg/webhook"
	"github.com/Butcher-11/SuperAI/pkg/workflow"
)

// ownerHeader identifies the calling user. Authentication happens upstream;
// the API trusts this header.
const ownerHeader = "X-User-ID"

const defaultExecutionListLimit = 50

type APIHandlers struct {
	orchestrator *workflow.Orchestrator
	tracker      *tracker.Tracker
	dispatcher   *webhook.Dispatcher
	validator    *validator.Validate
}

func NewAPIHandlers(
	orchestrator *workflow.Orchestrator,
	executionTracker *tracker.Tracker,
	dispatcher *webhook.Dispatcher,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		orchestrator: orchestrator,
		tracker:      executionTracker,
		dispatcher:   dispatcher,
		validator:    validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.orchestrator.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if !ok {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.orchestrator.Create(c.Context(), req.toModel(ownerID))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	workflows, err := h.orchestrator.List(c.Context(), ownerID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	found, err := h.orchestrator.Get(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	existing, err := h.orchestrator.Get(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return handleDomainError(c, err)
	}

	req.applyTo(existing)

	updated, err := h.orchestrator.Update(c.Context(), existing.ID, ownerID, existing)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	if err := h.orchestrator.Delete(c.Context(), c.Params("id"), ownerID); err != nil {
		return handleDomainError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) AddStep(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	var req StepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.orchestrator.AddStep(c.Context(), c.Params("id"), ownerID, req.toModel())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(updated)
}

func (h *APIHandlers) UpdateStep(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	var req StepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.orchestrator.UpdateStep(c.Context(), c.Params("id"), ownerID, c.Params("stepId"), req.toModel())
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) RemoveStep(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	updated, err := h.orchestrator.RemoveStep(c.Context(), c.Params("id"), ownerID, c.Params("stepId"))
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeployWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	result, err := h.orchestrator.Deploy(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	var req ExecuteRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	execution, err := h.orchestrator.Execute(c.Context(), c.Params("id"), ownerID, req.TriggerData)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(execution)
}

func (h *APIHandlers) PauseWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	paused, err := h.orchestrator.Pause(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(paused)
}

func (h *APIHandlers) ResumeWorkflow(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	resumed, err := h.orchestrator.Resume(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(resumed)
}

func (h *APIHandlers) GetWebhookURL(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	url, err := h.orchestrator.WebhookURL(c.Context(), c.Params("id"), ownerID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{"webhook_url": url})
}

func (h *APIHandlers) GetExecutions(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	limit := defaultExecutionListLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	// Ensure the caller owns the workflow before listing its executions.
	if _, err := h.orchestrator.Get(c.Context(), c.Params("id"), ownerID); err != nil {
		return handleDomainError(c, err)
	}

	executions, err := h.orchestrator.Executions(c.Context(), c.Params("id"), ownerID, limit)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions": executions,
		"count":      len(executions),
	})
}

// GetExecutionStatus returns the current state of one execution, refreshing
// it from the engine first for non-terminal executions.
func (h *APIHandlers) GetExecutionStatus(c fiber.Ctx) error {
	ownerID := c.Get(ownerHeader)

	execution, err := h.tracker.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleDomainError(c, err)
	}

	if execution.OwnerID != ownerID {
		return notFound(c, "execution not found")
	}

	reconciled, err := h.tracker.Reconcile(c.Context(), execution.ID)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(reconciled)
}

// IngestWebhook receives integration webhooks and fans them out to
// subscribed workflows. No owner header: the caller is the integration.
func (h *APIHandlers) IngestWebhook(c fiber.Ctx) error {
	integrationType := c.Params("integration")
	if integrationType == "" {
		return badRequest(c, "Integration type is required")
	}

	payload := map[string]any{}

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&payload); err != nil {
			return badRequest(c, "Invalid JSON payload")
		}
	}

	dispatched, err := h.dispatcher.Dispatch(c.Context(), integrationType, payload)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"integration_type": integrationType,
		"dispatched":       dispatched,
	})
}
