package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/waverelay/waverelay/internal/logger"
)

const defaultLeadGrade = "new"

// Service resolves handles to rooms, creating room and lead on first
// contact. Creation is idempotent under concurrent webhook deliveries, the
// unique constraint on the handle decides the winner and losers re-read.
type Service struct {
	store Store
	log   *slog.Logger
}

func NewService(store Store) *Service {
	return &Service{
		store: store,
		log:   logger.L.With(slog.String("service", "room")),
	}
}

// ResolveOrCreate returns the room for the handle, creating it if absent.
// displayName seeds the room title and the lead profile. The second return
// reports whether this call created the room.
func (s *Service) ResolveOrCreate(ctx context.Context, handle, displayName string) (Room, bool, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return Room{}, false, fmt.Errorf("handle is required")
	}

	r, err := s.store.GetRoomByHandle(ctx, handle)
	if err == nil {
		return r, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Room{}, false, fmt.Errorf("lookup room %s: %w", handle, err)
	}

	title := strings.TrimSpace(displayName)
	if title == "" {
		title = handle
	}

	// Lead creation is best effort. A room without a lead is still usable
	// and the lead can be attached later.
	var leadID *string
	if lead, err := s.ensureLead(ctx, handle, title); err != nil {
		s.log.Warn("lead provisioning failed",
			slog.String("handle", handle),
			slog.Any("error", err))
	} else {
		leadID = &lead.ID
	}

	r, err = s.store.CreateRoom(ctx, handle, title, leadID)
	if err == nil {
		s.log.Info("room created",
			slog.String("room_id", r.ID),
			slog.String("handle", handle))
		return r, true, nil
	}
	if !errors.Is(err, ErrConflict) {
		return Room{}, false, fmt.Errorf("create room %s: %w", handle, err)
	}

	// Another delivery won the insert race. Its row is the room.
	r, err = s.store.GetRoomByHandle(ctx, handle)
	if err != nil {
		return Room{}, false, fmt.Errorf("reread room %s after conflict: %w", handle, err)
	}
	return r, false, nil
}

// Get returns a room by id.
func (s *Service) Get(ctx context.Context, id string) (Room, error) {
	return s.store.GetRoomByID(ctx, id)
}

// LeadByHandle returns the contact profile for a handle.
func (s *Service) LeadByHandle(ctx context.Context, handle string) (Lead, error) {
	return s.store.GetLeadByHandle(ctx, handle)
}

func (s *Service) ensureLead(ctx context.Context, handle, name string) (Lead, error) {
	lead, err := s.store.GetLeadByHandle(ctx, handle)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Lead{}, fmt.Errorf("lookup lead %s: %w", handle, err)
	}

	lead, err = s.store.CreateLead(ctx, handle, name)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, ErrConflict) {
		return Lead{}, fmt.Errorf("create lead %s: %w", handle, err)
	}
	lead, err = s.store.GetLeadByHandle(ctx, handle)
	if err != nil {
		return Lead{}, fmt.Errorf("reread lead %s after conflict: %w", handle, err)
	}
	return lead, nil
}
