package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesSubscribers(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	var joined, failed atomic.Int32
	bus.Subscribe(EventSessionJoined, "joined", func(ctx context.Context, e Event) error {
		joined.Add(1)
		return nil
	})
	bus.Subscribe(EventSessionFailed, "failed", func(ctx context.Context, e Event) error {
		failed.Add(1)
		return nil
	})

	for i := 0; i < 10; i++ {
		bus.Emit(context.Background(), Event{Type: EventSessionJoined, Source: "test"})
	}
	bus.Stop()

	assert.Equal(t, int32(10), joined.Load())
	assert.Zero(t, failed.Load())
}

func TestEmitAfterStopIsDropped(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	var calls atomic.Int32
	bus.Subscribe(EventSessionJoined, "count", func(ctx context.Context, e Event) error {
		calls.Add(1)
		return nil
	})
	bus.Stop()

	bus.Emit(context.Background(), Event{Type: EventSessionJoined})
	require.NoError(t, bus.EmitSync(context.Background(), Event{Type: EventSessionJoined}))
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestEmitSyncReturnsHandlerError(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	boom := errors.New("boom")
	bus.Subscribe(EventFleetStarted, "failing", func(ctx context.Context, e Event) error {
		return boom
	})
	bus.Subscribe(EventFleetStarted, "panicking", func(ctx context.Context, e Event) error {
		panic("handler bug")
	})

	err := bus.EmitSync(context.Background(), Event{Type: EventFleetStarted})
	assert.ErrorIs(t, err, boom)
}

func TestSubscribeAllAndUnsubscribe(t *testing.T) {
	t.Parallel()

	bus := NewEventBus()
	bus.SubscribeAll(SessionTypes, "stats", func(ctx context.Context, e Event) error { return nil })
	for _, typ := range SessionTypes {
		assert.Equal(t, 1, bus.HandlerCount(typ))
	}

	bus.Unsubscribe(EventSessionJoined, "stats")
	assert.Zero(t, bus.HandlerCount(EventSessionJoined))
	assert.Equal(t, 1, bus.HandlerCount(EventSessionFailed))
}

func TestSessionPayloadJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(SessionPayload{Slot: 2, Name: "abc", Remote: "localhost:25565", Stage: StageJoin})
	require.NoError(t, err)
	assert.JSONEq(t, `{"slot":2,"name":"abc","remote":"localhost:25565","stage":"join"}`, string(data))
}
