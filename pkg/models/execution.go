package models

import "time"

// ExecutionStatus represents the lifecycle state of a single workflow run.
// success, failed and cancelled are terminal.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSuccess   ExecutionStatus = "success"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status can never change again.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSuccess, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkflowExecution is one triggered run of a deployed workflow. It is created
// at dispatch time with status running and advances only through reconciliation
// against the engine. DurationSeconds is computed once, at the transition into
// a terminal state.
type WorkflowExecution struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	OwnerID    string `json:"owner_id"    validate:"required"`

	Status      ExecutionStatus `json:"status"`
	TriggerData map[string]any  `json:"trigger_data,omitempty"`

	StepResults  map[string]any `json:"step_results,omitempty"` // step id -> result
	OutputData   map[string]any `json:"output_data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`

	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`

	EngineExecutionID string `json:"engine_execution_id,omitempty"`
}
