// Package workflow implements the workflow lifecycle: definition, step
// management, deployment to the engine and execution dispatch.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/eventbus"
	"github.com/Butcher-11/SuperAI/pkg/events"
	"github.com/Butcher-11/SuperAI/pkg/graph"
	"github.com/Butcher-11/SuperAI/pkg/limiter"
	"github.com/Butcher-11/SuperAI/pkg/log"
	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
	"github.com/Butcher-11/SuperAI/pkg/tracker"
)

// EngineGateway is the slice of the engine client the orchestrator needs.
type EngineGateway interface {
	CreateGraph(ctx context.Context, g *graph.Graph) (string, error)
	DeleteGraph(ctx context.Context, engineWorkflowID string) error
	TriggerExecution(ctx context.Context, engineWorkflowID string, triggerData map[string]any) (string, error)
	WebhookURL(path string) string
}

// Orchestrator coordinates workflow definitions, the engine and the
// execution tracker.
type Orchestrator struct {
	persistence persistence.Persistence
	gateway     EngineGateway
	tracker     *tracker.Tracker
	limiter     limiter.Limiter
	publisher   eventbus.EventPublisher
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewOrchestrator creates an orchestrator. The publisher may be nil to
// disable lifecycle events.
func NewOrchestrator(
	p persistence.Persistence,
	gateway EngineGateway,
	executionTracker *tracker.Tracker,
	executionLimiter limiter.Limiter,
	publisher eventbus.EventPublisher,
) *Orchestrator {
	return &Orchestrator{
		persistence: p,
		gateway:     gateway,
		tracker:     executionTracker,
		limiter:     executionLimiter,
		publisher:   publisher,
		validate:    validator.New(),
		logger:      log.WithModule("workflow"),
	}
}

// HealthCheck reports the health of the persistence layer.
func (o *Orchestrator) HealthCheck(ctx context.Context) (string, bool) {
	if err := o.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create validates and stores a new workflow in the draft state.
func (o *Orchestrator) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.EngineWorkflowID = ""
	workflow.Status = models.WorkflowStatusDraft

	if workflow.TriggerConfig == nil {
		workflow.TriggerConfig = map[string]any{}
	}

	if err := o.validateWorkflow(workflow); err != nil {
		return nil, err
	}

	if err := o.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	o.logger.InfoContext(ctx, "Created workflow", "workflow_id", workflow.ID, "owner_id", workflow.OwnerID)

	return workflow, nil
}

// List returns the workflows belonging to an owner, or all workflows when
// ownerID is empty.
func (o *Orchestrator) List(ctx context.Context, ownerID string) ([]*models.Workflow, error) {
	if ownerID == "" {
		return o.persistence.WorkflowRepository().GetAll(ctx)
	}

	return o.persistence.WorkflowRepository().GetByOwner(ctx, ownerID)
}

// Get returns one workflow. A non-empty ownerID must match the workflow's
// owner; foreign workflows are reported as not found rather than forbidden.
func (o *Orchestrator) Get(ctx context.Context, workflowID, ownerID string) (*models.Workflow, error) {
	workflow, err := o.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow == nil || (ownerID != "" && workflow.OwnerID != ownerID) {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Update replaces the mutable fields of a workflow. Identity, ownership,
// engine linkage and status survive the update; an active workflow keeps
// serving its previously deployed graph until redeployed.
func (o *Orchestrator) Update(ctx context.Context, workflowID, ownerID string, updated *models.Workflow) (*models.Workflow, error) {
	existing, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	updated.ID = existing.ID
	updated.OwnerID = existing.OwnerID
	updated.Status = existing.Status
	updated.EngineWorkflowID = existing.EngineWorkflowID
	updated.EngineWebhookID = existing.EngineWebhookID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()

	if updated.TriggerConfig == nil {
		updated.TriggerConfig = map[string]any{}
	}

	if err := o.validateWorkflow(updated); err != nil {
		return nil, err
	}

	if err := o.persistence.WorkflowRepository().Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to update workflow %s: %w", workflowID, err)
	}

	return updated, nil
}

// AddStep appends a step to the workflow. The step joins the end of the
// ordering regardless of any order the caller supplied.
func (o *Orchestrator) AddStep(ctx context.Context, workflowID, ownerID string, step *models.WorkflowStep) (*models.Workflow, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	if step.ID == "" {
		step.ID = uuid.New().String()
	}

	step.Order = len(workflow.Steps)
	workflow.Steps = append(workflow.Steps, step)

	return o.saveSteps(ctx, workflow)
}

// UpdateStep replaces a step in place, keeping its identity and position.
func (o *Orchestrator) UpdateStep(ctx context.Context, workflowID, ownerID, stepID string, updated *models.WorkflowStep) (*models.Workflow, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	replaced := false

	for i, step := range workflow.Steps {
		if step.ID == stepID {
			updated.ID = stepID
			updated.Order = step.Order
			workflow.Steps[i] = updated
			replaced = true

			break
		}
	}

	if !replaced {
		return nil, fmt.Errorf("step %s in workflow %s: %w", stepID, workflowID, ErrStepNotFound)
	}

	return o.saveSteps(ctx, workflow)
}

// RemoveStep deletes a step and closes the ordering gap it leaves. Steps
// that depended on it lose that dependency edge.
func (o *Orchestrator) RemoveStep(ctx context.Context, workflowID, ownerID, stepID string) (*models.Workflow, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	steps := make([]*models.WorkflowStep, 0, len(workflow.Steps))
	found := false

	for _, step := range workflow.Steps {
		if step.ID == stepID {
			found = true

			continue
		}

		steps = append(steps, step)
	}

	if !found {
		return nil, fmt.Errorf("step %s in workflow %s: %w", stepID, workflowID, ErrStepNotFound)
	}

	for i, step := range steps {
		step.Order = i
		step.DependsOn = removeDependency(step.DependsOn, stepID)
	}

	workflow.Steps = steps

	return o.saveSteps(ctx, workflow)
}

// DeployResult is the outcome of a successful deployment.
type DeployResult struct {
	Workflow   *models.Workflow `json:"workflow"`
	WebhookURL string           `json:"webhook_url,omitempty"`
}

// Deploy translates the workflow and creates it in the engine. On success
// the workflow becomes active; on engine failure it moves to the error state
// and the failure is returned.
func (o *Orchestrator) Deploy(ctx context.Context, workflowID, ownerID string) (*DeployResult, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	if workflow.Status == models.WorkflowStatusActive {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, ErrWorkflowAlreadyActive)
	}

	if err := workflow.ValidateSteps(); err != nil {
		return nil, err
	}

	g, err := graph.Translate(workflow)
	if err != nil {
		return nil, fmt.Errorf("translate workflow %s: %w", workflowID, err)
	}

	engineWorkflowID, err := o.gateway.CreateGraph(ctx, g)
	if err != nil {
		workflow.Status = models.WorkflowStatusError
		workflow.UpdatedAt = time.Now().UTC()

		if saveErr := o.persistence.WorkflowRepository().Save(ctx, workflow); saveErr != nil {
			o.logger.ErrorContext(ctx, "Failed to record deployment failure",
				"workflow_id", workflowID, "error", saveErr)
		}

		return nil, fmt.Errorf("deploy workflow %s: %w", workflowID, err)
	}

	workflow.Status = models.WorkflowStatusActive
	workflow.EngineWorkflowID = engineWorkflowID
	workflow.UpdatedAt = time.Now().UTC()

	// Record the webhook path the engine graph was registered with, so that
	// later trigger config edits cannot drift the reported URL.
	workflow.EngineWebhookID = ""
	if workflow.TriggerType == models.TriggerTypeWebhook {
		workflow.EngineWebhookID = webhookPath(workflow)
	}

	if err := o.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("deploy workflow %s: %w", workflowID, err)
	}

	result := &DeployResult{Workflow: workflow}
	if workflow.TriggerType == models.TriggerTypeWebhook {
		result.WebhookURL = o.gateway.WebhookURL(workflow.EngineWebhookID)
	}

	o.publish(ctx, events.WorkflowDeployed{
		BaseEvent:        events.NewBaseEvent(events.WorkflowDeployedEvent, workflow.ID),
		EngineWorkflowID: engineWorkflowID,
		WebhookURL:       result.WebhookURL,
	})

	o.logger.InfoContext(ctx, "Deployed workflow",
		"workflow_id", workflow.ID,
		"engine_workflow_id", engineWorkflowID)

	return result, nil
}

// Execute dispatches one execution of an active workflow.
func (o *Orchestrator) Execute(ctx context.Context, workflowID, ownerID string, triggerData map[string]any) (*models.WorkflowExecution, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("workflow %s has status %s: %w", workflowID, workflow.Status, ErrWorkflowNotActive)
	}

	if err := o.limiter.Acquire(ctx, workflow); err != nil {
		return nil, err
	}

	engineExecutionID, err := o.gateway.TriggerExecution(ctx, workflow.EngineWorkflowID, triggerData)
	if err != nil {
		if releaseErr := o.limiter.Release(ctx, workflow); releaseErr != nil {
			o.logger.WarnContext(ctx, "Failed to release execution slot",
				"workflow_id", workflowID, "error", releaseErr)
		}

		return nil, fmt.Errorf("execute workflow %s: %w", workflowID, err)
	}

	execution, err := o.tracker.RecordDispatch(ctx, workflow, engineExecutionID, triggerData)
	if err != nil {
		// Without a record the reconciler can never release this slot.
		if releaseErr := o.limiter.Release(ctx, workflow); releaseErr != nil {
			o.logger.WarnContext(ctx, "Failed to release execution slot",
				"workflow_id", workflowID, "error", releaseErr)
		}

		return nil, fmt.Errorf("record execution of workflow %s: %w", workflowID, err)
	}

	o.publish(ctx, events.ExecutionDispatched{
		BaseEvent:         events.NewBaseEvent(events.ExecutionDispatchedEvent, workflow.ID),
		ExecutionID:       execution.ID,
		EngineExecutionID: engineExecutionID,
		TriggerData:       triggerData,
	})

	return execution, nil
}

// Executions returns the most recent executions of a workflow, newest first.
func (o *Orchestrator) Executions(ctx context.Context, workflowID, ownerID string, limit int) ([]*models.WorkflowExecution, error) {
	return o.tracker.List(ctx, workflowID, ownerID, limit)
}

// Pause stops an active workflow from accepting new executions. In-flight
// executions finish on their own.
func (o *Orchestrator) Pause(ctx context.Context, workflowID, ownerID string) (*models.Workflow, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("workflow %s has status %s: %w", workflowID, workflow.Status, ErrWorkflowNotActive)
	}

	workflow.Status = models.WorkflowStatusPaused
	workflow.UpdatedAt = time.Now().UTC()

	if err := o.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("pause workflow %s: %w", workflowID, err)
	}

	o.publish(ctx, events.WorkflowPaused{
		BaseEvent: events.NewBaseEvent(events.WorkflowPausedEvent, workflow.ID),
	})

	return workflow, nil
}

// Resume reactivates a paused workflow. The engine-side graph is still
// deployed, so no redeployment happens.
func (o *Orchestrator) Resume(ctx context.Context, workflowID, ownerID string) (*models.Workflow, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}

	if workflow.Status != models.WorkflowStatusPaused {
		return nil, fmt.Errorf("workflow %s has status %s: %w", workflowID, workflow.Status, ErrWorkflowNotPaused)
	}

	if workflow.EngineWorkflowID == "" {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, engine.ErrWorkflowNotDeployed)
	}

	workflow.Status = models.WorkflowStatusActive
	workflow.UpdatedAt = time.Now().UTC()

	if err := o.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("resume workflow %s: %w", workflowID, err)
	}

	o.publish(ctx, events.WorkflowResumed{
		BaseEvent: events.NewBaseEvent(events.WorkflowResumedEvent, workflow.ID),
	})

	return workflow, nil
}

// Delete removes a workflow, its executions and, best-effort, its
// engine-side graph. An unreachable engine does not block local deletion.
func (o *Orchestrator) Delete(ctx context.Context, workflowID, ownerID string) error {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return err
	}

	if workflow.EngineWorkflowID != "" {
		if err := o.gateway.DeleteGraph(ctx, workflow.EngineWorkflowID); err != nil {
			o.logger.WarnContext(ctx, "Failed to delete workflow graph from engine",
				"workflow_id", workflowID,
				"engine_workflow_id", workflow.EngineWorkflowID,
				"error", err)
		}
	}

	if err := o.persistence.ExecutionRepository().DeleteByWorkflow(ctx, workflowID); err != nil {
		return fmt.Errorf("delete executions of workflow %s: %w", workflowID, err)
	}

	if err := o.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
		return fmt.Errorf("delete workflow %s: %w", workflowID, err)
	}

	o.publish(ctx, events.WorkflowDeleted{
		BaseEvent:        events.NewBaseEvent(events.WorkflowDeletedEvent, workflowID),
		EngineWorkflowID: workflow.EngineWorkflowID,
	})

	o.logger.InfoContext(ctx, "Deleted workflow", "workflow_id", workflowID)

	return nil
}

// WebhookURL returns the engine URL that triggers a deployed
// webhook-triggered workflow.
func (o *Orchestrator) WebhookURL(ctx context.Context, workflowID, ownerID string) (string, error) {
	workflow, err := o.Get(ctx, workflowID, ownerID)
	if err != nil {
		return "", err
	}

	if workflow.TriggerType != models.TriggerTypeWebhook {
		return "", fmt.Errorf("workflow %s: %w", workflowID, ErrNotWebhookTriggered)
	}

	if workflow.EngineWorkflowID == "" {
		return "", fmt.Errorf("workflow %s: %w", workflowID, engine.ErrWorkflowNotDeployed)
	}

	path := workflow.EngineWebhookID
	if path == "" {
		path = webhookPath(workflow)
	}

	return o.gateway.WebhookURL(path), nil
}

func (o *Orchestrator) validateWorkflow(workflow *models.Workflow) error {
	if err := o.validate.Struct(workflow); err != nil {
		return fmt.Errorf("invalid workflow: %w", err)
	}

	return workflow.ValidateSteps()
}

func (o *Orchestrator) saveSteps(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := workflow.ValidateSteps(); err != nil {
		return nil, err
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := o.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return workflow, nil
}

func (o *Orchestrator) publish(ctx context.Context, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	if err := o.publisher.Publish(ctx, string(event.GetType()), event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish lifecycle event",
			"event_type", event.GetType(), "error", err)
	}
}

func webhookPath(workflow *models.Workflow) string {
	if path, ok := workflow.TriggerConfig["path"].(string); ok && path != "" {
		return path
	}

	return "webhook"
}

func removeDependency(dependsOn []string, stepID string) []string {
	filtered := dependsOn[:0]

	for _, id := range dependsOn {
		if id != stepID {
			filtered = append(filtered, id)
		}
	}

	return filtered
}
