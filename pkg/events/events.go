// Package events defines event types and structures for workflow lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Butcher-11/SuperAI/pkg/models"
)

type EventType string

// Topic is the event stream all lifecycle events are published to.
const Topic = "superai.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowDeployedEvent EventType = "workflow.deployed"
	WorkflowPausedEvent   EventType = "workflow.paused"
	WorkflowResumedEvent  EventType = "workflow.resumed"
	WorkflowDeletedEvent  EventType = "workflow.deleted"

	// Execution lifecycle events.
	ExecutionDispatchedEvent EventType = "execution.dispatched"
	ExecutionFinishedEvent   EventType = "execution.finished"

	// Webhook ingestion events.
	WebhookReceivedEvent EventType = "webhook.received"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	OwnerID    string         `json:"owner_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowDeployed struct {
	BaseEvent

	EngineWorkflowID string `json:"engine_workflow_id"`
	WebhookURL       string `json:"webhook_url,omitempty"`
}

func (w WorkflowDeployed) GetType() EventType {
	return WorkflowDeployedEvent
}

type WorkflowPaused struct {
	BaseEvent
}

func (w WorkflowPaused) GetType() EventType {
	return WorkflowPausedEvent
}

type WorkflowResumed struct {
	BaseEvent
}

func (w WorkflowResumed) GetType() EventType {
	return WorkflowResumedEvent
}

type WorkflowDeleted struct {
	BaseEvent

	EngineWorkflowID string `json:"engine_workflow_id,omitempty"`
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

type ExecutionDispatched struct {
	BaseEvent

	ExecutionID       string         `json:"execution_id"`
	EngineExecutionID string         `json:"engine_execution_id"`
	TriggerData       map[string]any `json:"trigger_data,omitempty"`
}

func (e ExecutionDispatched) GetType() EventType {
	return ExecutionDispatchedEvent
}

type ExecutionFinished struct {
	BaseEvent

	ExecutionID     string                 `json:"execution_id"`
	Status          models.ExecutionStatus `json:"status"`
	DurationSeconds float64                `json:"duration_seconds"`
	Error           string                 `json:"error,omitempty"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

type WebhookReceived struct {
	BaseEvent

	IntegrationType string         `json:"integration_type"`
	Payload         map[string]any `json:"payload,omitempty"`
}

func (e WebhookReceived) GetType() EventType {
	return WebhookReceivedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
