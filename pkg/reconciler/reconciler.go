// Package reconciler runs the background jobs that keep local execution
// records in sync with the engine: polling running executions, failing stuck
// ones and purging old records.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Butcher-11/SuperAI/pkg/eventbus"
	"github.com/Butcher-11/SuperAI/pkg/events"
	"github.com/Butcher-11/SuperAI/pkg/limiter"
	"github.com/Butcher-11/SuperAI/pkg/log"
	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
	"github.com/Butcher-11/SuperAI/pkg/tracker"
)

const (
	defaultMonitorSchedule   = "@every 1m"
	defaultRetentionSchedule = "0 2 * * *"
	defaultRetentionDays     = 30
)

// Config controls the reconciler's schedules and policies.
type Config struct {
	// MonitorSchedule is the cron expression for polling running
	// executions. Defaults to every minute.
	MonitorSchedule string
	// RetentionSchedule is the cron expression for the purge job.
	// Defaults to 02:00 daily.
	RetentionSchedule string
	// RetentionDays is how long terminal executions are kept.
	// Defaults to 30.
	RetentionDays int
	// MaxExecutionAge fails running executions older than this. Zero
	// disables the policy.
	MaxExecutionAge time.Duration
}

func (c *Config) applyDefaults() {
	if c.MonitorSchedule == "" {
		c.MonitorSchedule = defaultMonitorSchedule
	}

	if c.RetentionSchedule == "" {
		c.RetentionSchedule = defaultRetentionSchedule
	}

	if c.RetentionDays <= 0 {
		c.RetentionDays = defaultRetentionDays
	}
}

// Reconciler owns the periodic execution maintenance jobs.
type Reconciler struct {
	persistence persistence.Persistence
	tracker     *tracker.Tracker
	limiter     limiter.Limiter
	publisher   eventbus.EventPublisher
	config      Config
	cron        *cron.Cron
	logger      *slog.Logger
	now         func() time.Time
}

// NewReconciler creates a reconciler. The publisher may be nil to disable
// lifecycle events.
func NewReconciler(
	p persistence.Persistence,
	executionTracker *tracker.Tracker,
	executionLimiter limiter.Limiter,
	publisher eventbus.EventPublisher,
	config Config,
) *Reconciler {
	config.applyDefaults()

	return &Reconciler{
		persistence: p,
		tracker:     executionTracker,
		limiter:     executionLimiter,
		publisher:   publisher,
		config:      config,
		logger:      log.WithModule("reconciler"),
		now:         time.Now,
	}
}

// Start registers and starts the cron jobs. A slow poll never overlaps with
// the next tick; a panicking job does not take the scheduler down.
func (r *Reconciler) Start(ctx context.Context) error {
	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	if _, err := r.cron.AddFunc(r.config.MonitorSchedule, func() {
		if _, err := r.ReconcileRunning(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Reconcile pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule monitor job: %w", err)
	}

	if _, err := r.cron.AddFunc(r.config.RetentionSchedule, func() {
		if _, err := r.PurgeExpired(ctx); err != nil {
			r.logger.ErrorContext(ctx, "Retention pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule retention job: %w", err)
	}

	r.cron.Start()
	r.logger.InfoContext(ctx, "Reconciler started",
		"monitor_schedule", r.config.MonitorSchedule,
		"retention_schedule", r.config.RetentionSchedule,
		"retention_days", r.config.RetentionDays,
		"max_execution_age", r.config.MaxExecutionAge)

	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// ReconcileRunning refreshes every running execution from the engine and
// returns how many reached a terminal state. One failing execution does not
// stop the pass.
func (r *Reconciler) ReconcileRunning(ctx context.Context) (int, error) {
	running, err := r.persistence.ExecutionRepository().ListRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("list running executions: %w", err)
	}

	finished := 0

	for _, execution := range running {
		reconciled, err := r.reconcileOne(ctx, execution)
		if err != nil {
			r.logger.WarnContext(ctx, "Failed to reconcile execution",
				"execution_id", execution.ID,
				"workflow_id", execution.WorkflowID,
				"error", err)

			continue
		}

		if reconciled.Status.IsTerminal() {
			finished++

			r.onFinished(ctx, reconciled)
		}
	}

	if len(running) > 0 {
		r.logger.InfoContext(ctx, "Reconcile pass complete",
			"running", len(running), "finished", finished)
	}

	return finished, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, execution *models.WorkflowExecution) (*models.WorkflowExecution, error) {
	if r.config.MaxExecutionAge > 0 && r.now().UTC().Sub(execution.StartedAt) > r.config.MaxExecutionAge {
		return r.tracker.Fail(ctx, execution.ID,
			fmt.Sprintf("execution exceeded maximum age of %s", r.config.MaxExecutionAge))
	}

	return r.tracker.Reconcile(ctx, execution.ID)
}

// PurgeExpired deletes executions older than the retention window.
func (r *Reconciler) PurgeExpired(ctx context.Context) (int, error) {
	return r.tracker.PurgeOlderThan(ctx, time.Duration(r.config.RetentionDays)*24*time.Hour)
}

func (r *Reconciler) onFinished(ctx context.Context, execution *models.WorkflowExecution) {
	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, execution.WorkflowID)
	if err != nil {
		r.logger.WarnContext(ctx, "Failed to load workflow for finished execution",
			"execution_id", execution.ID, "workflow_id", execution.WorkflowID, "error", err)
	} else if workflow != nil {
		if err := r.limiter.Release(ctx, workflow); err != nil {
			r.logger.WarnContext(ctx, "Failed to release execution slot",
				"execution_id", execution.ID, "workflow_id", workflow.ID, "error", err)
		}
	}

	if r.publisher == nil {
		return
	}

	var duration float64
	if execution.DurationSeconds != nil {
		duration = *execution.DurationSeconds
	}

	event := events.ExecutionFinished{
		BaseEvent:       events.NewBaseEvent(events.ExecutionFinishedEvent, execution.WorkflowID),
		ExecutionID:     execution.ID,
		Status:          execution.Status,
		DurationSeconds: duration,
		Error:           execution.ErrorMessage,
	}

	if err := r.publisher.Publish(ctx, string(event.GetType()), event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish execution finished event",
			"execution_id", execution.ID, "error", err)
	}
}
