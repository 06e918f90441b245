// Package room provisions conversations and the leads attached to them.
package room

import (
	"context"
	"errors"
	"time"
)

// Room is one conversation with an external contact.
type Room struct {
	ID        string    `json:"id"`
	Handle    string    `json:"handle"`
	Title     string    `json:"title"`
	LeadID    *string   `json:"lead_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lead is the contact profile behind a room.
type Lead struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Name   string `json:"name"`
	Grade  string `json:"grade"`
}

// ErrNotFound is returned by stores when no row matches.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by stores when an insert hits a unique constraint.
// Callers resolve it by re-reading the winning row.
var ErrConflict = errors.New("already exists")

// Store is the persistence surface the provisioner needs.
type Store interface {
	GetRoomByHandle(ctx context.Context, handle string) (Room, error)
	GetRoomByID(ctx context.Context, id string) (Room, error)
	CreateRoom(ctx context.Context, handle, title string, leadID *string) (Room, error)
	SetRoomLead(ctx context.Context, roomID, leadID string) error
	GetLeadByHandle(ctx context.Context, handle string) (Lead, error)
	CreateLead(ctx context.Context, handle, name string) (Lead, error)
}
