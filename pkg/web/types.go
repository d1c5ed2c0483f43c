// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/Butcher-11/SuperAI/pkg/models"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name          string         `json:"name"           validate:"required,min=3"`
	Description   string         `json:"description"`
	TriggerType   string         `json:"trigger_type"   validate:"required,oneof=manual webhook schedule event"`
	TriggerConfig map[string]any `json:"trigger_config"`
	Tags          []string       `json:"tags,omitempty"`

	MaxConcurrentExecutions int `json:"max_concurrent_executions" validate:"min=0"`
	ExecutionTimeoutMinutes int `json:"execution_timeout_minutes" validate:"min=0"`
}

// UpdateWorkflowRequest represents the request body for updating an existing
// workflow. All fields are optional to support partial updates.
type UpdateWorkflowRequest struct {
	Name          *string        `json:"name,omitempty"          validate:"omitempty,min=3"`
	Description   *string        `json:"description,omitempty"`
	TriggerType   *string        `json:"trigger_type,omitempty"  validate:"omitempty,oneof=manual webhook schedule event"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty"`
	Tags          []string       `json:"tags,omitempty"`

	MaxConcurrentExecutions *int `json:"max_concurrent_executions,omitempty" validate:"omitempty,min=0"`
	ExecutionTimeoutMinutes *int `json:"execution_timeout_minutes,omitempty" validate:"omitempty,min=0"`
}

// StepRequest represents the request body for adding or replacing a workflow
// step. Ordering is server-managed: added steps join the end of the chain.
type StepRequest struct {
	Name          string            `json:"name"        validate:"required,min=1"`
	ActionType    string            `json:"action_type" validate:"required,oneof=api_call ai_process data_transform notification integration_action"`
	IntegrationID string            `json:"integration_id,omitempty"`
	Config        map[string]any    `json:"config"`
	InputMapping  map[string]string `json:"input_mapping,omitempty"`
	OutputMapping map[string]string `json:"output_mapping,omitempty"`

	TimeoutSeconds int      `json:"timeout_seconds" validate:"min=0"`
	RetryCount     int      `json:"retry_count"     validate:"min=0"`
	OnError        string   `json:"on_error"        validate:"omitempty,oneof=stop continue retry"`
	DependsOn      []string `json:"depends_on,omitempty"`
}

// ExecuteRequest represents the request body for triggering an execution.
type ExecuteRequest struct {
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (r *CreateWorkflowRequest) toModel(ownerID string) *models.Workflow {
	return &models.Workflow{
		OwnerID:                 ownerID,
		Name:                    r.Name,
		Description:             r.Description,
		TriggerType:             models.TriggerType(r.TriggerType),
		TriggerConfig:           r.TriggerConfig,
		Steps:                   []*models.WorkflowStep{},
		Tags:                    r.Tags,
		MaxConcurrentExecutions: r.MaxConcurrentExecutions,
		ExecutionTimeoutMinutes: r.ExecutionTimeoutMinutes,
	}
}

func (r *UpdateWorkflowRequest) applyTo(workflow *models.Workflow) {
	if r.Name != nil {
		workflow.Name = *r.Name
	}

	if r.Description != nil {
		workflow.Description = *r.Description
	}

	if r.TriggerType != nil {
		workflow.TriggerType = models.TriggerType(*r.TriggerType)
	}

	if r.TriggerConfig != nil {
		workflow.TriggerConfig = r.TriggerConfig
	}

	if r.Tags != nil {
		workflow.Tags = r.Tags
	}

	if r.MaxConcurrentExecutions != nil {
		workflow.MaxConcurrentExecutions = *r.MaxConcurrentExecutions
	}

	if r.ExecutionTimeoutMinutes != nil {
		workflow.ExecutionTimeoutMinutes = *r.ExecutionTimeoutMinutes
	}
}

func (r *StepRequest) toModel() *models.WorkflowStep {
	timeout := r.TimeoutSeconds
	if timeout == 0 {
		timeout = 30
	}

	onError := models.ErrorPolicy(r.OnError)
	if r.OnError == "" {
		onError = models.ErrorPolicyStop
	}

	config := r.Config
	if config == nil {
		config = map[string]any{}
	}

	return &models.WorkflowStep{
		Name:           r.Name,
		ActionType:     models.ActionType(r.ActionType),
		IntegrationID:  r.IntegrationID,
		Config:         config,
		InputMapping:   r.InputMapping,
		OutputMapping:  r.OutputMapping,
		TimeoutSeconds: timeout,
		RetryCount:     r.RetryCount,
		OnError:        onError,
		DependsOn:      r.DependsOn,
	}
}
