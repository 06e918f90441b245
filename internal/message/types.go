// Package message holds the canonical message record and the services that
// persist and publish it.
package message

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a message by its content shape.
type Kind string

const (
	KindText           Kind = "text"
	KindMedia          Kind = "media"
	KindLocation       Kind = "location"
	KindContacts       Kind = "contacts"
	KindReaction       Kind = "reaction"
	KindInteractive    Kind = "interactive"
	KindButton         Kind = "button"
	KindOrder          Kind = "order"
	KindReferral       Kind = "referral"
	KindSystem         Kind = "system"
	KindRequestWelcome Kind = "request_welcome"
	KindUnsupported    Kind = "unsupported"
)

// Valid reports whether k is a known content kind.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindMedia, KindLocation, KindContacts, KindReaction,
		KindInteractive, KindButton, KindOrder, KindReferral, KindSystem,
		KindRequestWelcome, KindUnsupported:
		return true
	}
	return false
}

// MediaInfo carries the platform and backup references for a media message.
type MediaInfo struct {
	Type       string  `json:"type"`
	PlatformID string  `json:"platform_id"`
	BackupKey  *string `json:"backup_key"`
	BackupURL  *string `json:"backup_url"`
	Size       *int64  `json:"size"`
	MimeType   *string `json:"mime_type"`
	Filename   *string `json:"filename"`
}

// ReactionInfo links an emoji reaction to the reacted-to message by its
// platform id.
type ReactionInfo struct {
	Emoji      string `json:"emoji"`
	ToExternal string `json:"to_external_id"`
}

// Record is the canonical message representation. Optional fields are
// pointers and serialize as explicit nulls so consumers can distinguish
// absent from empty.
type Record struct {
	ID                string         `json:"id"`
	RoomID            string         `json:"room_id"`
	AgentID           *string        `json:"agent_id"`
	Kind              Kind           `json:"kind"`
	Body              *string        `json:"body"`
	ExternalID        *string        `json:"external_id"`
	Status            *string        `json:"status"`
	StatusAt          *time.Time     `json:"status_at"`
	Media             *MediaInfo     `json:"media"`
	ReplyToExternalID *string        `json:"reply_to_external_id"`
	Reaction          *ReactionInfo  `json:"reaction"`
	Metadata          map[string]any `json:"metadata"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Outbound reports whether the message was sent by an agent rather than
// received from the platform.
func (r Record) Outbound() bool {
	return r.AgentID != nil && *r.AgentID != ""
}

// Draft is the input to persisting a message. Everything server-generated
// (id, timestamps) is absent.
type Draft struct {
	RoomID            string
	AgentID           *string
	Kind              Kind
	Body              *string
	ExternalID        *string
	Status            *string
	StatusAt          *time.Time
	Media             *MediaInfo
	ReplyToExternalID *string
	Reaction          *ReactionInfo
	Metadata          map[string]any
}

// Validate checks the structural invariants a draft must hold before it can
// be persisted.
func (d Draft) Validate() error {
	if strings.TrimSpace(d.RoomID) == "" {
		return fmt.Errorf("room id is required")
	}
	if !d.Kind.Valid() {
		return fmt.Errorf("unknown message kind %q", d.Kind)
	}
	if d.Kind == KindMedia && d.Media == nil {
		return fmt.Errorf("media message requires media info")
	}
	if d.Kind == KindReaction && d.Reaction == nil {
		return fmt.Errorf("reaction message requires reaction info")
	}
	return nil
}
