package engine

import (
	"time"

	"github.com/Butcher-11/SuperAI/pkg/models"
)

// Engine-side execution status values.
const (
	EngineStatusRunning  = "running"
	EngineStatusSuccess  = "success"
	EngineStatusFailed   = "failed"
	EngineStatusCanceled = "canceled"
	EngineStatusWaiting  = "waiting"
)

// ExecutionSnapshot is the engine's view of one execution at fetch time.
type ExecutionSnapshot struct {
	// EngineStatus is the raw status string as reported by the engine.
	EngineStatus string
	// Status is EngineStatus mapped into the local status vocabulary.
	Status models.ExecutionStatus
	// StepData holds the engine's per-node output data, keyed as the
	// engine keys it.
	StepData map[string]any
	// ErrorMessage is the engine's error description, empty on success.
	ErrorMessage string
	// FinishedAt is set once the engine has finished the execution.
	FinishedAt *time.Time
}

var statusMapping = map[string]models.ExecutionStatus{
	EngineStatusRunning:  models.ExecutionStatusRunning,
	EngineStatusSuccess:  models.ExecutionStatusSuccess,
	EngineStatusFailed:   models.ExecutionStatusFailed,
	EngineStatusCanceled: models.ExecutionStatusCancelled,
	EngineStatusWaiting:  models.ExecutionStatusPending,
}

// MapStatus translates an engine status into the local vocabulary. Statuses
// the mapping does not know collapse to failed so an engine change can never
// leave executions stuck in a non-terminal state.
func MapStatus(engineStatus string) models.ExecutionStatus {
	if status, ok := statusMapping[engineStatus]; ok {
		return status
	}

	return models.ExecutionStatusFailed
}
