package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clankers-project/clankers/internal/events"
)

func failed(stage events.Stage, class string) events.Event {
	return events.Event{
		Type:    events.EventSessionFailed,
		Payload: events.SessionPayload{Name: "x", Stage: stage, ErrClass: class, Error: "boom"},
	}
}

func TestCollectorCounts(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	ctx := context.Background()

	for _, e := range []events.Event{
		{Type: events.EventSessionConnecting},
		{Type: events.EventSessionConnecting},
		{Type: events.EventSessionConnecting},
		{Type: events.EventSessionJoined},
		{Type: events.EventSessionJoined},
		failed(events.StagePlay, "EEOF"),
		failed(events.StageDial, "ECONNREFUSED"),
		failed(events.StageJoin, "EEOF"),
	} {
		require.NoError(t, c.Handle(ctx, e))
	}

	s := c.Snapshot()
	assert.Equal(t, int64(3), s.Connecting)
	assert.Equal(t, int64(2), s.Joined)
	assert.Equal(t, int64(3), s.Failed)
	assert.Equal(t, int64(1), s.Playing)
	assert.Equal(t, []ClassCount{{Class: "EEOF", Count: 2}, {Class: "ECONNREFUSED", Count: 1}}, s.FailedBy)
	assert.Equal(t, map[string]int64{"play": 1, "dial": 1, "join": 1}, s.FailedStage)
	require.NotNil(t, s.LastFailure)
	assert.Equal(t, events.StageJoin, s.LastFailure.Stage)
}

func TestCollectorPlayingNeverNegative(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	ctx := context.Background()

	require.NoError(t, c.Handle(ctx, failed(events.StagePlay, "EEOF")))
	assert.Zero(t, c.Snapshot().Playing)

	require.NoError(t, c.Handle(ctx, events.Event{Type: events.EventSessionJoined}))
	assert.Zero(t, c.Snapshot().Playing, "the late join settles the gauge")

	require.NoError(t, c.Handle(ctx, events.Event{Type: events.EventSessionJoined}))
	assert.Equal(t, int64(1), c.Snapshot().Playing)
}

func TestCollectorAttach(t *testing.T) {
	t.Parallel()

	bus := events.NewEventBus()
	c := NewCollector()
	c.Attach(bus)

	bus.Emit(context.Background(), events.Event{Type: events.EventSessionJoined})
	bus.Emit(context.Background(), failed(events.StagePlay, "EINTR"))
	bus.Stop()

	s := c.Snapshot()
	assert.Equal(t, int64(1), s.Joined)
	assert.Equal(t, int64(1), s.Failed)
	assert.Zero(t, s.Playing)
	assert.Len(t, s.FailedBy, 1)
}
