package busbench

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arloliu/busbench/types"
)

// Event body defaults.
const (
	DefaultEventType   = "UndefinedEventType"
	DefaultEventSource = "busbench"

	// PropertyGameID is the application property carrying the game id.
	PropertyGameID = "gameId"
)

// Event is the JSON body of every published benchmark event.
type Event struct {
	ID                           string    `json:"id"`
	EventType                    string    `json:"eventType"`
	GameID                       string    `json:"gameId"`
	TaskID                       string    `json:"taskId"`
	TournamentID                 string    `json:"tournamentId"`
	Source                       string    `json:"source"`
	ProducedAt                   time.Time `json:"producedAt"`
	RoleID                       string    `json:"roleId,omitempty"`
	GroupID                      string    `json:"groupId,omitempty"`
	AgentSubscriptionFilterValue string    `json:"agentSubscriptionFilterValue"`
	Message                      string    `json:"message,omitempty"`
}

// EventFactory stamps events that share one game, task, tournament, role,
// group and filter value, as a single game session would.
type EventFactory struct {
	template Event
	now      func() time.Time
}

// NewEventFactory creates a factory for a run.
//
// Parameters:
//   - gameID: Game id and partition key of every event (random when empty)
//   - now: Clock stamping ProducedAt (time.Now when nil)
//
// Returns:
//   - *EventFactory: Factory producing events of one session
func NewEventFactory(gameID string, now func() time.Time) *EventFactory {
	if gameID == "" {
		gameID = uuid.NewString()
	}
	if now == nil {
		now = time.Now
	}

	return &EventFactory{
		template: Event{
			EventType:                    DefaultEventType,
			GameID:                       gameID,
			TaskID:                       uuid.NewString(),
			TournamentID:                 uuid.NewString(),
			Source:                       DefaultEventSource,
			RoleID:                       uuid.NewString(),
			GroupID:                      uuid.NewString(),
			AgentSubscriptionFilterValue: uuid.NewString(),
		},
		now: now,
	}
}

// GameID returns the game id shared by all events.
func (f *EventFactory) GameID() string {
	return f.template.GameID
}

// Next returns the outbound event with 1-based sequence index seq.
func (f *EventFactory) Next(seq int) (*types.OutboundEvent, error) {
	e := f.template
	e.ID = uuid.NewString()
	e.ProducedAt = f.now().UTC()

	payload, err := json.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %d: %w", seq, err)
	}

	return &types.OutboundEvent{
		ID:            e.ID,
		Payload:       payload,
		PartitionKey:  e.GameID,
		Properties:    map[string]string{PropertyGameID: e.GameID},
		SequenceIndex: seq,
	}, nil
}

// Build returns n events numbered from 1.
func (f *EventFactory) Build(n int) ([]*types.OutboundEvent, error) {
	events := make([]*types.OutboundEvent, 0, n)
	for i := 1; i <= n; i++ {
		e, err := f.Next(i)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, nil
}

// DecodeEvent parses an event body.
func DecodeEvent(body []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event body: %w", err)
	}
	if e.ID == "" || e.ProducedAt.IsZero() {
		return Event{}, errors.New("event body lacks id or producedAt")
	}

	return e, nil
}

// ReceivedFrom builds the recorder entry for a delivery observed at receivedAt.
func ReceivedFrom(d types.Delivery, receivedAt time.Time) (types.ReceivedEvent, error) {
	e, err := DecodeEvent(d.Body)
	if err != nil {
		return types.ReceivedEvent{}, err
	}

	return types.ReceivedEvent{
		PartitionID:    d.PartitionID,
		SequenceNumber: d.SequenceNumber,
		CorrelationID:  e.ID,
		ProducedAt:     e.ProducedAt,
		EnqueuedAt:     d.EnqueuedAt,
		ReceivedAt:     receivedAt,
	}, nil
}
