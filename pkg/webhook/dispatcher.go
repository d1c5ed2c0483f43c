package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/backoff"

	"github.com/Butcher-11/SuperAI/pkg/eventbus"
	"github.com/Butcher-11/SuperAI/pkg/events"
	"github.com/Butcher-11/SuperAI/pkg/log"
	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
)

const defaultMaxAttempts = 3

// Executor dispatches one execution of a workflow.
type Executor interface {
	Execute(ctx context.Context, workflowID, ownerID string, triggerData map[string]any) (*models.WorkflowExecution, error)
}

// Dispatcher fans one incoming integration webhook out to every active,
// matching webhook-triggered workflow.
type Dispatcher struct {
	workflows persistence.WorkflowRepository
	executor  Executor
	publisher eventbus.EventPublisher
	logger    *slog.Logger

	// MaxAttempts bounds execution attempts per workflow, retrying with
	// exponential backoff on transient failures.
	MaxAttempts int
	// MinBackoff and MaxBackoff bound the delay between attempts.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewDispatcher creates a dispatcher. The publisher may be nil to disable
// ingestion events.
func NewDispatcher(workflows persistence.WorkflowRepository, executor Executor, publisher eventbus.EventPublisher) *Dispatcher {
	return &Dispatcher{
		workflows:   workflows,
		executor:    executor,
		publisher:   publisher,
		logger:      log.WithModule("webhook"),
		MaxAttempts: defaultMaxAttempts,
		MinBackoff:  2 * time.Second,
		MaxBackoff:  2 * time.Minute,
	}
}

// Dispatch triggers every active workflow subscribed to the integration
// whose trigger matches the payload, returning how many were dispatched. A
// workflow that exhausts its attempts does not block the others.
func (d *Dispatcher) Dispatch(ctx context.Context, integrationType string, payload map[string]any) (int, error) {
	targets, err := d.workflows.FindActiveWebhookTargets(ctx, integrationType)
	if err != nil {
		return 0, fmt.Errorf("find webhook targets for %s: %w", integrationType, err)
	}

	dispatched := 0

	for _, workflow := range targets {
		if !Matches(workflow, payload) {
			continue
		}

		triggerData := map[string]any{
			"integration_type": integrationType,
			"webhook_payload":  payload,
			"received_at":      time.Now().UTC().Format(time.RFC3339),
		}

		if err := d.executeWithRetry(ctx, workflow, triggerData); err != nil {
			d.logger.ErrorContext(ctx, "Failed to dispatch webhook to workflow",
				"workflow_id", workflow.ID,
				"integration_type", integrationType,
				"error", err)

			continue
		}

		dispatched++
	}

	d.publishReceived(ctx, integrationType, payload, dispatched)

	return dispatched, nil
}

func (d *Dispatcher) executeWithRetry(ctx context.Context, workflow *models.Workflow, triggerData map[string]any) error {
	b := &backoff.Backoff{
		Min:    d.MinBackoff,
		Max:    d.MaxBackoff,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error

	for attempt := 1; attempt <= d.MaxAttempts; attempt++ {
		_, err := d.executor.Execute(ctx, workflow.ID, workflow.OwnerID, triggerData)
		if err == nil {
			return nil
		}

		lastErr = err

		if attempt == d.MaxAttempts {
			break
		}

		d.logger.WarnContext(ctx, "Webhook dispatch attempt failed, retrying",
			"workflow_id", workflow.ID,
			"attempt", attempt,
			"error", err)

		select {
		case <-time.After(b.Duration()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("dispatch to workflow %s failed after %d attempts: %w", workflow.ID, d.MaxAttempts, lastErr)
}

func (d *Dispatcher) publishReceived(ctx context.Context, integrationType string, payload map[string]any, dispatched int) {
	if d.publisher == nil {
		return
	}

	event := events.WebhookReceived{
		BaseEvent:       events.NewBaseEvent(events.WebhookReceivedEvent, ""),
		IntegrationType: integrationType,
		Payload:         payload,
	}
	event.Metadata["dispatched"] = dispatched

	if err := d.publisher.Publish(ctx, integrationType, event); err != nil {
		d.logger.WarnContext(ctx, "Failed to publish webhook received event",
			"integration_type", integrationType, "error", err)
	}
}
