package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Butcher-11/SuperAI/pkg/channels/gochannel"
	"github.com/Butcher-11/SuperAI/pkg/events"
)

func TestWatermillEventBusRoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() {
		require.NoError(t, bus.Close())
	}()

	received := make(chan *events.WorkflowDeployed, 1)

	err = bus.Handle(events.WorkflowDeployedEvent, func(_ context.Context, event interface{}) error {
		deployed, ok := event.(*events.WorkflowDeployed)
		require.True(t, ok)

		received <- deployed

		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	deployed := events.WorkflowDeployed{
		BaseEvent:        events.NewBaseEvent(events.WorkflowDeployedEvent, "wf-1"),
		EngineWorkflowID: "engine-wf-1",
	}

	require.NoError(t, bus.Publish(ctx, "wf-1", deployed))

	select {
	case got := <-received:
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "engine-wf-1", got.EngineWorkflowID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBusIgnoresUnhandledEvents(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() {
		require.NoError(t, bus.Close())
	}()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	deleted := events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, "wf-1"),
	}

	// No handler registered: the message is acked and dropped.
	require.NoError(t, bus.Publish(ctx, "wf-1", deleted))
}

func TestGenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer func() {
		require.NoError(t, bus.Close())
	}()

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
