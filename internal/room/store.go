package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waverelay/waverelay/internal/db"
	"github.com/waverelay/waverelay/internal/db/sqlc"
)

// PgStore implements Store on Postgres.
type PgStore struct {
	queries *sqlc.Queries
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{queries: sqlc.New(pool)}
}

func (s *PgStore) GetRoomByHandle(ctx context.Context, handle string) (Room, error) {
	row, err := s.queries.GetRoomByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("get room by handle: %w", err)
	}
	return toRoom(row), nil
}

func (s *PgStore) GetRoomByID(ctx context.Context, id string) (Room, error) {
	uid, err := db.ParseUUID(id)
	if err != nil {
		return Room{}, fmt.Errorf("parse room id: %w", err)
	}
	row, err := s.queries.GetRoomByID(ctx, uid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("get room by id: %w", err)
	}
	return toRoom(row), nil
}

func (s *PgStore) CreateRoom(ctx context.Context, handle, title string, leadID *string) (Room, error) {
	var lead pgtype.UUID
	if leadID != nil {
		parsed, err := db.ParseUUID(*leadID)
		if err != nil {
			return Room{}, fmt.Errorf("parse lead id: %w", err)
		}
		lead = parsed
	}
	row, err := s.queries.CreateRoom(ctx, sqlc.CreateRoomParams{
		Handle: handle,
		Title:  title,
		LeadID: lead,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Room{}, ErrConflict
		}
		return Room{}, fmt.Errorf("create room: %w", err)
	}
	return toRoom(row), nil
}

func (s *PgStore) SetRoomLead(ctx context.Context, roomID, leadID string) error {
	rid, err := db.ParseUUID(roomID)
	if err != nil {
		return fmt.Errorf("parse room id: %w", err)
	}
	lid, err := db.ParseUUID(leadID)
	if err != nil {
		return fmt.Errorf("parse lead id: %w", err)
	}
	if err := s.queries.SetRoomLead(ctx, sqlc.SetRoomLeadParams{ID: rid, LeadID: lid}); err != nil {
		return fmt.Errorf("set room lead: %w", err)
	}
	return nil
}

func (s *PgStore) GetLeadByHandle(ctx context.Context, handle string) (Lead, error) {
	row, err := s.queries.GetLeadByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, fmt.Errorf("get lead by handle: %w", err)
	}
	return toLead(row), nil
}

func (s *PgStore) CreateLead(ctx context.Context, handle, name string) (Lead, error) {
	row, err := s.queries.CreateLead(ctx, sqlc.CreateLeadParams{
		Handle: handle,
		Name:   name,
		Grade:  defaultLeadGrade,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Lead{}, ErrConflict
		}
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return toLead(row), nil
}

func toRoom(row sqlc.Room) Room {
	r := Room{
		ID:        db.UUIDToString(row.ID),
		Handle:    row.Handle,
		Title:     row.Title,
		CreatedAt: row.CreatedAt.Time,
		UpdatedAt: row.UpdatedAt.Time,
	}
	if row.LeadID.Valid {
		id := db.UUIDToString(row.LeadID)
		r.LeadID = &id
	}
	return r
}

func toLead(row sqlc.Lead) Lead {
	return Lead{
		ID:     db.UUIDToString(row.ID),
		Handle: row.Handle,
		Name:   row.Name,
		Grade:  row.Grade,
	}
}
