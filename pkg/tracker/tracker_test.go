package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Butcher-11/SuperAI/pkg/engine"
	"github.com/Butcher-11/SuperAI/pkg/models"
	"github.com/Butcher-11/SuperAI/pkg/persistence"
	"github.com/Butcher-11/SuperAI/pkg/persistence/file"
)

type fakeFetcher struct {
	snapshot *engine.ExecutionSnapshot
	err      error
	calls    int
}

func (f *fakeFetcher) FetchExecutionStatus(_ context.Context, _ string) (*engine.ExecutionSnapshot, error) {
	f.calls++

	return f.snapshot, f.err
}

func testTracker(t *testing.T, fetcher StatusFetcher) (*Tracker, persistence.ExecutionRepository) {
	t.Helper()

	repo := file.NewPersistence(t.TempDir()).ExecutionRepository()

	return NewTracker(repo, fetcher), repo
}

func testWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:      "wf-1",
		OwnerID: "owner-1",
		Name:    "Test Workflow",
		Status:  models.WorkflowStatusActive,
	}
}

func TestRecordDispatch(t *testing.T) {
	tr, _ := testTracker(t, &fakeFetcher{})

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-1", map[string]any{"source": "manual"})
	require.NoError(t, err)

	assert.NotEmpty(t, execution.ID)
	assert.Equal(t, "wf-1", execution.WorkflowID)
	assert.Equal(t, "owner-1", execution.OwnerID)
	assert.Equal(t, models.ExecutionStatusRunning, execution.Status)
	assert.Equal(t, "engine-exec-1", execution.EngineExecutionID)
	assert.False(t, execution.StartedAt.IsZero())
	assert.Nil(t, execution.CompletedAt)
	assert.Nil(t, execution.DurationSeconds)

	stored, err := tr.Get(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.ID, stored.ID)
}

func TestReconcileTerminalSnapshot(t *testing.T) {
	started := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	finished := started.Add(45 * time.Second)

	fetcher := &fakeFetcher{
		snapshot: &engine.ExecutionSnapshot{
			EngineStatus: engine.EngineStatusSuccess,
			Status:       models.ExecutionStatusSuccess,
			StepData:     map[string]any{"fetch": "ok"},
			FinishedAt:   &finished,
		},
	}

	tr, _ := testTracker(t, fetcher)
	tr.now = func() time.Time { return started }

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-1", nil)
	require.NoError(t, err)

	reconciled, err := tr.Reconcile(t.Context(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusSuccess, reconciled.Status)
	assert.Equal(t, map[string]any{"fetch": "ok"}, reconciled.StepResults)
	require.NotNil(t, reconciled.CompletedAt)
	assert.Equal(t, finished, reconciled.CompletedAt.UTC())
	require.NotNil(t, reconciled.DurationSeconds)
	assert.InDelta(t, 45.0, *reconciled.DurationSeconds, 0.001)
}

func TestReconcileIsIdempotent(t *testing.T) {
	finished := time.Now().UTC()

	fetcher := &fakeFetcher{
		snapshot: &engine.ExecutionSnapshot{
			EngineStatus: engine.EngineStatusSuccess,
			Status:       models.ExecutionStatusSuccess,
			FinishedAt:   &finished,
		},
	}

	tr, _ := testTracker(t, fetcher)

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-1", nil)
	require.NoError(t, err)

	first, err := tr.Reconcile(t.Context(), execution.ID)
	require.NoError(t, err)
	require.True(t, first.Status.IsTerminal())

	// Terminal records do not hit the engine again and keep their snapshot.
	fetcher.snapshot = &engine.ExecutionSnapshot{
		EngineStatus: engine.EngineStatusFailed,
		Status:       models.ExecutionStatusFailed,
	}

	second, err := tr.Reconcile(t.Context(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, models.ExecutionStatusSuccess, second.Status)
	assert.Equal(t, first.CompletedAt.Unix(), second.CompletedAt.Unix())
	assert.Equal(t, *first.DurationSeconds, *second.DurationSeconds)
}

func TestReconcileRunningSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{
		snapshot: &engine.ExecutionSnapshot{
			EngineStatus: engine.EngineStatusRunning,
			Status:       models.ExecutionStatusRunning,
			StepData:     map[string]any{"fetch": "in progress"},
		},
	}

	tr, _ := testTracker(t, fetcher)

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-1", nil)
	require.NoError(t, err)

	reconciled, err := tr.Reconcile(t.Context(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusRunning, reconciled.Status)
	assert.Equal(t, map[string]any{"fetch": "in progress"}, reconciled.StepResults)
	assert.Nil(t, reconciled.CompletedAt)
	assert.Nil(t, reconciled.DurationSeconds)
}

func TestReconcileWithoutEngineExecutionID(t *testing.T) {
	fetcher := &fakeFetcher{}
	tr, _ := testTracker(t, fetcher)

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "", nil)
	require.NoError(t, err)

	reconciled, err := tr.Reconcile(t.Context(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, models.ExecutionStatusFailed, reconciled.Status)
	assert.Contains(t, reconciled.ErrorMessage, "no engine execution id")
	require.NotNil(t, reconciled.DurationSeconds)
}

func TestReconcileEngineExecutionGone(t *testing.T) {
	fetcher := &fakeFetcher{err: engine.ErrExecutionNotFound}
	tr, _ := testTracker(t, fetcher)

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-1", nil)
	require.NoError(t, err)

	reconciled, err := tr.Reconcile(t.Context(), execution.ID)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, reconciled.Status)
	assert.Contains(t, reconciled.ErrorMessage, "no longer exists in engine")
}

func TestReconcileEngineUnavailableLeavesStateUntouched(t *testing.T) {
	fetcher := &fakeFetcher{err: engine.ErrEngineUnavailable}
	tr, _ := testTracker(t, fetcher)

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-1", nil)
	require.NoError(t, err)

	_, err = tr.Reconcile(t.Context(), execution.ID)
	require.Error(t, err)

	stored, err := tr.Get(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
}

func TestFail(t *testing.T) {
	tr, _ := testTracker(t, &fakeFetcher{})

	execution, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-1", nil)
	require.NoError(t, err)

	failed, err := tr.Fail(t.Context(), execution.ID, "exceeded maximum execution age")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, failed.Status)
	assert.Equal(t, "exceeded maximum execution age", failed.ErrorMessage)

	// Already-terminal executions are returned as-is.
	again, err := tr.Fail(t.Context(), execution.ID, "different reason")
	require.NoError(t, err)
	assert.Equal(t, "exceeded maximum execution age", again.ErrorMessage)
}

func TestPurgeOlderThan(t *testing.T) {
	tr, repo := testTracker(t, &fakeFetcher{})

	old, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-old", nil)
	require.NoError(t, err)

	old.StartedAt = time.Now().UTC().Add(-31 * 24 * time.Hour)
	require.NoError(t, repo.Save(t.Context(), old))

	recent, err := tr.RecordDispatch(t.Context(), testWorkflow(), "engine-exec-new", nil)
	require.NoError(t, err)

	purged, err := tr.PurgeOlderThan(t.Context(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = tr.Get(t.Context(), old.ID)
	require.Error(t, err)

	kept, err := tr.Get(t.Context(), recent.ID)
	require.NoError(t, err)
	assert.Equal(t, recent.ID, kept.ID)
}
