package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/waverelay/waverelay/internal/event"
	"github.com/waverelay/waverelay/internal/logger"
	"github.com/waverelay/waverelay/internal/room"
)

// ErrNotFound is returned when no message matches.
var ErrNotFound = errors.New("message not found")

// ErrDuplicate is returned by stores when an insert hits the external id
// unique constraint, meaning the platform delivered the same message twice.
var ErrDuplicate = errors.New("message already persisted")

// Store is the persistence surface the message service needs.
type Store interface {
	// CreateWithFirstCheck inserts the draft and reports whether the room
	// was empty before this insert. Both happen in one transaction so
	// concurrent inserts cannot both observe an empty room.
	CreateWithFirstCheck(ctx context.Context, d Draft) (Record, bool, error)
	GetByExternalID(ctx context.Context, externalID string) (Record, error)
	UpdateStatus(ctx context.Context, externalID, status string, statusAt time.Time) error
	RecordStatusEvent(ctx context.Context, externalID, status string, statusAt time.Time) error
	ListByRoom(ctx context.Context, roomID string, limit, offset int64) ([]Record, error)
}

// LeadResolver loads the contact profile linked to a room.
type LeadResolver interface {
	LeadByHandle(ctx context.Context, handle string) (room.Lead, error)
}

// RoomCreatedPayload is the composite event body for a room born with its
// first message. Lead is null when the room has no linked contact, observers
// never need a follow-up fetch.
type RoomCreatedPayload struct {
	Room    room.Room  `json:"room"`
	Lead    *room.Lead `json:"lead"`
	Message Record     `json:"message"`
}

// StatusPayload is the event body for a delivery status transition.
type StatusPayload struct {
	ExternalID string    `json:"external_id"`
	Status     string    `json:"status"`
	StatusAt   time.Time `json:"status_at"`
}

// DBService persists messages and publishes the matching real-time event.
// Publishing always happens after the write committed.
type DBService struct {
	store             Store
	publisher         event.Publisher
	leads             LeadResolver
	strictStatusOrder bool
	log               *slog.Logger
}

func NewDBService(store Store, publisher event.Publisher, leads LeadResolver, strictStatusOrder bool) *DBService {
	return &DBService{
		store:             store,
		publisher:         publisher,
		leads:             leads,
		strictStatusOrder: strictStatusOrder,
		log:               logger.L.With(slog.String("service", "message")),
	}
}

// Persist writes the draft and publishes either the composite room event or
// a plain message event. The composite fires when this message is the room's
// first, so consumers can render a brand new conversation from one event.
// Duplicate platform deliveries resolve to the already stored record without
// publishing again.
func (s *DBService) Persist(ctx context.Context, rm room.Room, d Draft) (Record, error) {
	if err := d.Validate(); err != nil {
		return Record{}, fmt.Errorf("invalid message: %w", err)
	}

	rec, first, err := s.store.CreateWithFirstCheck(ctx, d)
	if errors.Is(err, ErrDuplicate) && d.ExternalID != nil {
		existing, getErr := s.store.GetByExternalID(ctx, *d.ExternalID)
		if getErr != nil {
			return Record{}, fmt.Errorf("reread duplicate %s: %w", *d.ExternalID, getErr)
		}
		s.log.Info("duplicate delivery ignored",
			slog.String("external_id", *d.ExternalID),
			slog.String("room_id", existing.RoomID))
		return existing, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("persist message: %w", err)
	}

	if first {
		s.publish(ctx, event.TypeRoomCreated, rec.RoomID, RoomCreatedPayload{
			Room:    rm,
			Lead:    s.leadFor(ctx, rm),
			Message: rec,
		})
	} else {
		s.publish(ctx, event.TypeMessageCreated, rec.RoomID, rec)
	}
	return rec, nil
}

// ListByRoom returns messages newest first.
func (s *DBService) ListByRoom(ctx context.Context, roomID string, limit, offset int64) ([]Record, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListByRoom(ctx, roomID, limit, offset)
}

// leadFor resolves the contact linked to the room for the composite event.
// A failed lookup degrades to a null lead, it never blocks the event.
func (s *DBService) leadFor(ctx context.Context, rm room.Room) *room.Lead {
	if s.leads == nil || rm.LeadID == nil {
		return nil
	}
	lead, err := s.leads.LeadByHandle(ctx, rm.Handle)
	if err != nil {
		s.log.Warn("lead lookup for composite event failed",
			slog.String("room_id", rm.ID),
			slog.String("handle", rm.Handle),
			slog.Any("error", err))
		return nil
	}
	return &lead
}

// publish logs failures instead of propagating them. The write already
// committed, subscribers catch up from storage.
func (s *DBService) publish(ctx context.Context, typ event.Type, roomID string, payload any) {
	ev, err := event.New(typ, roomID, payload)
	if err != nil {
		s.log.Error("marshal event failed",
			slog.String("type", string(typ)),
			slog.Any("error", err))
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Error("publish event failed",
			slog.String("type", string(typ)),
			slog.String("room_id", roomID),
			slog.Any("error", err))
	}
}
