// Package models defines the core domain models for user-defined automation workflows.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusDraft  WorkflowStatus = "draft"  // Editable, never deployed
	WorkflowStatusActive WorkflowStatus = "active" // Deployed to the engine, executable
	WorkflowStatusPaused WorkflowStatus = "paused" // Deployed but not executable
	WorkflowStatusError  WorkflowStatus = "error"  // Last deployment failed, redeployable
)

// TriggerType identifies how a workflow run is initiated.
type TriggerType string

const (
	TriggerTypeManual   TriggerType = "manual"
	TriggerTypeWebhook  TriggerType = "webhook"
	TriggerTypeSchedule TriggerType = "schedule"
	TriggerTypeEvent    TriggerType = "event" // Integration event
)

// Workflow is the aggregate: a trigger plus an ordered list of steps, tracked
// through the draft/active/paused/error lifecycle. The engine correlation ids
// are assigned at deployment and cleared only by deletion.
type Workflow struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"    validate:"required"`
	Name        string `json:"name"        validate:"required,min=3"`
	Description string `json:"description"`

	TriggerType   TriggerType    `json:"trigger_type" validate:"required,oneof=manual webhook schedule event"`
	TriggerConfig map[string]any `json:"trigger_config"`

	Steps []*WorkflowStep `json:"steps"`

	// External engine correlation
	EngineWorkflowID string `json:"engine_workflow_id,omitempty"`
	EngineWebhookID  string `json:"engine_webhook_id,omitempty"`

	Status WorkflowStatus `json:"status"`
	Tags   []string       `json:"tags,omitempty"`

	MaxConcurrentExecutions int `json:"max_concurrent_executions"`
	ExecutionTimeoutMinutes int `json:"execution_timeout_minutes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StepByID returns the step with the given id, or nil.
func (w *Workflow) StepByID(stepID string) *WorkflowStep {
	for _, step := range w.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// ValidateSteps checks the cross-step invariants: every step valid on its own,
// orders dense from 0 and unique, depends_on referencing existing steps
// without cycles. The translator flattens the dependency graph into a linear
// chain ordered by Order, so acyclicity is asserted here instead.
func (w *Workflow) ValidateSteps() error {
	byID := make(map[string]*WorkflowStep, len(w.Steps))
	seenOrder := make(map[int]bool, len(w.Steps))

	for _, step := range w.Steps {
		if err := step.Validate(); err != nil {
			return err
		}

		if step.Order >= len(w.Steps) {
			return newStepFault(step.ID, "order %d out of range for %d steps", step.Order, len(w.Steps))
		}

		if seenOrder[step.Order] {
			return newStepFault(step.ID, "duplicate order %d", step.Order)
		}

		seenOrder[step.Order] = true
		byID[step.ID] = step
	}

	for _, step := range w.Steps {
		for _, dep := range step.DependsOn {
			if _, ok := byID[dep]; !ok {
				return newStepFault(step.ID, "depends on unknown step %q", dep)
			}
		}
	}

	return assertAcyclic(byID)
}

// assertAcyclic walks depends_on edges with a three-color DFS.
func assertAcyclic(steps map[string]*WorkflowStep) error {
	const (
		white = iota
		grey
		black
	)

	color := make(map[string]int, len(steps))

	var visit func(id string) error

	visit = func(id string) error {
		switch color[id] {
		case grey:
			return newStepFault(id, "dependency cycle detected")
		case black:
			return nil
		}

		color[id] = grey

		for _, dep := range steps[id].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}

		color[id] = black

		return nil
	}

	for id := range steps {
		if err := visit(id); err != nil {
			return err
		}
	}

	return nil
}
