// Package event defines the real-time events emitted after persistence and
// the publishers that fan them out.
package event

import (
	"context"
	"encoding/json"
	"time"
)

// Type names an event on the wire. Routing keys reuse these values.
type Type string

const (
	// TypeRoomCreated is the composite event for a room born together with
	// its first message. Consumers render the room and the message from one
	// event without a follow-up fetch.
	TypeRoomCreated Type = "room.created"
	// TypeMessageCreated is a message appended to an existing room.
	TypeMessageCreated Type = "message.created"
	// TypeMessageStatus is a delivery status transition.
	TypeMessageStatus Type = "message.status"
)

// Event is the envelope every publisher carries.
type Event struct {
	Type   Type            `json:"type"`
	RoomID string          `json:"room_id"`
	At     time.Time       `json:"at"`
	Data   json.RawMessage `json:"data"`
}

// New builds an event with the payload marshalled in place.
func New(typ Type, roomID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:   typ,
		RoomID: roomID,
		At:     time.Now().UTC(),
		Data:   data,
	}, nil
}

// Publisher fans a persisted change out to live consumers. Publishing happens
// after the database write so subscribers never see state that was not
// stored.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
