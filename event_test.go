package busbench

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/busbench/types"
)

func TestEventFactory_Build(t *testing.T) {
	produced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	f := NewEventFactory("game-42", func() time.Time { return produced })

	events, err := f.Build(3)
	require.NoError(t, err)
	require.Len(t, events, 3)

	seen := make(map[string]bool)
	var first Event
	for i, e := range events {
		require.Equal(t, i+1, e.SequenceIndex)
		require.Equal(t, "game-42", e.PartitionKey)
		require.Equal(t, map[string]string{PropertyGameID: "game-42"}, e.Properties)
		require.False(t, seen[e.ID])
		seen[e.ID] = true

		var body Event
		require.NoError(t, json.Unmarshal(e.Payload, &body))
		require.Equal(t, e.ID, body.ID)
		require.Equal(t, DefaultEventType, body.EventType)
		require.Equal(t, DefaultEventSource, body.Source)
		require.True(t, produced.Equal(body.ProducedAt))
		if i == 0 {
			first = body
			continue
		}
		require.Equal(t, first.TaskID, body.TaskID)
		require.Equal(t, first.TournamentID, body.TournamentID)
		require.Equal(t, first.AgentSubscriptionFilterValue, body.AgentSubscriptionFilterValue)
	}
}

func TestEventFactory_RandomGameID(t *testing.T) {
	a := NewEventFactory("", nil)
	b := NewEventFactory("", nil)

	require.NotEmpty(t, a.GameID())
	require.NotEqual(t, a.GameID(), b.GameID())
}

func TestDecodeEvent(t *testing.T) {
	_, err := DecodeEvent([]byte("not json"))
	require.ErrorContains(t, err, "failed to decode event body")

	_, err = DecodeEvent([]byte(`{"id":"a"}`))
	require.Error(t, err)

	e, err := DecodeEvent([]byte(`{"id":"a","producedAt":"2026-03-01T12:00:00.5Z","gameId":"g"}`))
	require.NoError(t, err)
	require.Equal(t, "a", e.ID)
	require.Equal(t, "g", e.GameID)
	require.Equal(t, 500*time.Millisecond, e.ProducedAt.Sub(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestReceivedFrom(t *testing.T) {
	produced := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := NewEventFactory("game-42", func() time.Time { return produced })
	e, err := f.Next(1)
	require.NoError(t, err)

	d := types.Delivery{
		PartitionID:    "3",
		SequenceNumber: 17,
		EnqueuedAt:     produced.Add(20 * time.Millisecond),
		Body:           e.Payload,
	}
	received, err := ReceivedFrom(d, produced.Add(50*time.Millisecond))
	require.NoError(t, err)

	require.Equal(t, "3", received.PartitionID)
	require.Equal(t, int64(17), received.SequenceNumber)
	require.Equal(t, e.ID, received.CorrelationID)
	require.Equal(t, 20*time.Millisecond, received.ProducedToEnqueued())
	require.Equal(t, 30*time.Millisecond, received.EnqueuedToReceived())
	require.Equal(t, 50*time.Millisecond, received.ProducedToReceived())

	_, err = ReceivedFrom(types.Delivery{Body: []byte("{}")}, produced)
	require.Error(t, err)
}
