package models

import (
	"errors"
	"fmt"
)

// ActionType identifies the kind of work a step performs.
type ActionType string

const (
	ActionTypeAPICall           ActionType = "api_call"
	ActionTypeAIProcess         ActionType = "ai_process"
	ActionTypeDataTransform     ActionType = "data_transform"
	ActionTypeNotification      ActionType = "notification"
	ActionTypeIntegrationAction ActionType = "integration_action"
)

// ErrorPolicy controls what the engine should do when a step fails.
type ErrorPolicy string

const (
	ErrorPolicyStop     ErrorPolicy = "stop"
	ErrorPolicyContinue ErrorPolicy = "continue"
	ErrorPolicyRetry    ErrorPolicy = "retry"
)

// ErrInvalidStep is returned when a workflow step violates a model invariant.
var ErrInvalidStep = errors.New("invalid workflow step")

// WorkflowStep is one action within a workflow. Steps are mutated only through
// the orchestrator's step-management operations.
type WorkflowStep struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"        validate:"required"`
	ActionType    ActionType `json:"action_type" validate:"required,oneof=api_call ai_process data_transform notification integration_action"`
	IntegrationID string     `json:"integration_id,omitempty"` // Required for integration actions

	Config        map[string]any    `json:"config"`
	InputMapping  map[string]string `json:"input_mapping,omitempty"`
	OutputMapping map[string]string `json:"output_mapping,omitempty"`

	TimeoutSeconds int         `json:"timeout_seconds"`
	RetryCount     int         `json:"retry_count"`
	OnError        ErrorPolicy `json:"on_error"`

	Order     int      `json:"order"`
	DependsOn []string `json:"depends_on,omitempty"` // Step IDs this depends on
}

// Validate checks the per-step invariants. It has no side effects.
func (s *WorkflowStep) Validate() error {
	if s.Order < 0 {
		return newStepFault(s.ID, "order must not be negative, got %d", s.Order)
	}

	if s.TimeoutSeconds <= 0 {
		return newStepFault(s.ID, "timeout_seconds must be positive, got %d", s.TimeoutSeconds)
	}

	if s.RetryCount < 0 {
		return newStepFault(s.ID, "retry_count must not be negative, got %d", s.RetryCount)
	}

	switch s.OnError {
	case ErrorPolicyStop, ErrorPolicyContinue, ErrorPolicyRetry:
	default:
		return newStepFault(s.ID, "unknown on_error policy %q", s.OnError)
	}

	if s.ActionType == ActionTypeIntegrationAction && s.IntegrationID == "" {
		return newStepFault(s.ID, "integration actions require an integration_id")
	}

	return validateStepConfig(s)
}

func newStepFault(stepID, format string, args ...any) error {
	return fmt.Errorf("step %s: %s: %w", stepID, fmt.Sprintf(format, args...), ErrInvalidStep)
}

// IsInvalidStep checks if an error indicates a step validation failure.
func IsInvalidStep(err error) bool {
	return errors.Is(err, ErrInvalidStep)
}
