package workflow

import (
	"errors"

	"github.com/Butcher-11/SuperAI/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	// ErrStepNotFound is returned when a step is not found in a workflow.
	ErrStepNotFound = persistence.ErrStepNotFound
	// ErrWorkflowNotActive is returned when execution is requested for a
	// workflow that is not in the active state.
	ErrWorkflowNotActive = errors.New("workflow is not active")
	// ErrWorkflowAlreadyActive is returned when deployment is requested for
	// a workflow that is already active.
	ErrWorkflowAlreadyActive = errors.New("workflow is already active")
	// ErrWorkflowNotPaused is returned when resume is requested for a
	// workflow that is not paused.
	ErrWorkflowNotPaused = errors.New("workflow is not paused")
	// ErrNotWebhookTriggered is returned when a webhook URL is requested for
	// a workflow whose trigger is not a webhook.
	ErrNotWebhookTriggered = errors.New("workflow is not webhook-triggered")
)

func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

func IsWorkflowNotActive(err error) bool {
	return errors.Is(err, ErrWorkflowNotActive)
}

func IsWorkflowAlreadyActive(err error) bool {
	return errors.Is(err, ErrWorkflowAlreadyActive)
}
