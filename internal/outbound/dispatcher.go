// Package outbound sends agent messages out through the platform and stores
// the acknowledged result.
package outbound

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/waverelay/waverelay/internal/logger"
	"github.com/waverelay/waverelay/internal/media"
	"github.com/waverelay/waverelay/internal/message"
	"github.com/waverelay/waverelay/internal/normalize"
	"github.com/waverelay/waverelay/internal/room"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

type platformSender interface {
	SendText(ctx context.Context, to, body, replyTo string) (whatsapp.SendResult, error)
	SendMediaID(ctx context.Context, to, mediaType, mediaID, caption, replyTo string) (whatsapp.SendResult, error)
	SendReaction(ctx context.Context, to, messageID, emoji string) (whatsapp.SendResult, error)
	SendLocation(ctx context.Context, to string, loc whatsapp.Location) (whatsapp.SendResult, error)
	SendContacts(ctx context.Context, to string, cards []whatsapp.ContactCard) (whatsapp.SendResult, error)
	SendTemplate(ctx context.Context, to, name, language string, components []map[string]any) (whatsapp.SendResult, error)
}

type mediaUploader interface {
	Upload(ctx context.Context, in media.UploadInput) (media.UploadResult, error)
}

type roomResolver interface {
	Get(ctx context.Context, id string) (room.Room, error)
	ResolveOrCreate(ctx context.Context, handle, displayName string) (room.Room, bool, error)
}

type persister interface {
	Persist(ctx context.Context, rm room.Room, d message.Draft) (message.Record, error)
}

// Target addresses an outgoing message: the id of an existing room, or the
// contact's handle. Sending to a never-seen handle provisions the room the
// same way first inbound contact does.
type Target struct {
	RoomID string
	Handle string
}

// Outcome reports what happened to one outgoing message. ExternalID is set
// as soon as the platform accepted the send, even when the local write
// afterwards failed.
type Outcome struct {
	Message    message.Record
	ExternalID string
	Persisted  bool
}

// Dispatcher implements send then persist. The platform send runs first
// because its acknowledgement carries the external id the stored record
// needs. A persist failure after a successful send loses local history but
// never un-sends, so it is logged loudly and the external id still flows
// back to the caller.
type Dispatcher struct {
	platform platformSender
	media    mediaUploader
	rooms    roomResolver
	messages persister
	log      *slog.Logger
}

func NewDispatcher(platform platformSender, uploader mediaUploader, rooms roomResolver, messages persister) *Dispatcher {
	return &Dispatcher{
		platform: platform,
		media:    uploader,
		rooms:    rooms,
		messages: messages,
		log:      logger.L.With(slog.String("service", "outbound")),
	}
}

// resolveTarget turns the target into a room, provisioning one when a handle
// has never been contacted before.
func (d *Dispatcher) resolveTarget(ctx context.Context, target Target) (room.Room, error) {
	if target.RoomID != "" {
		rm, err := d.rooms.Get(ctx, target.RoomID)
		if err != nil {
			return room.Room{}, fmt.Errorf("resolve room %s: %w", target.RoomID, err)
		}
		return rm, nil
	}
	if strings.TrimSpace(target.Handle) == "" {
		return room.Room{}, fmt.Errorf("room id or handle is required")
	}
	rm, created, err := d.rooms.ResolveOrCreate(ctx, target.Handle, "")
	if err != nil {
		return room.Room{}, fmt.Errorf("resolve handle %s: %w", target.Handle, err)
	}
	if created {
		d.log.Info("conversation opened by outbound send",
			slog.String("room_id", rm.ID),
			slog.String("handle", rm.Handle))
	}
	return rm, nil
}

// SendText delivers a text message. replyTo threads it under an earlier
// message when set.
func (d *Dispatcher) SendText(ctx context.Context, target Target, agentID, body, replyTo string) (Outcome, error) {
	if strings.TrimSpace(body) == "" {
		return Outcome{}, fmt.Errorf("body is required")
	}
	rm, err := d.resolveTarget(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	res, err := d.platform.SendText(ctx, rm.Handle, body, replyTo)
	if err != nil {
		return Outcome{}, fmt.Errorf("platform send: %w", err)
	}

	draft := message.Draft{
		RoomID:  rm.ID,
		AgentID: &agentID,
		Kind:    message.KindText,
		Body:    &body,
	}
	setReply(&draft, replyTo)
	return d.persistSent(ctx, rm, draft, res.MessageID), nil
}

// MediaInput is one outgoing media attachment.
type MediaInput struct {
	Filename string
	MimeType string
	Caption  string
	ReplyTo  string
	Content  []byte
}

// SendMedia uploads the blob, delivers it and stores the record. Upload runs
// through the coordinator so the backup copy is written alongside the
// platform upload.
func (d *Dispatcher) SendMedia(ctx context.Context, target Target, agentID string, in MediaInput) (Outcome, error) {
	if len(in.Content) == 0 {
		return Outcome{}, fmt.Errorf("media content is required")
	}
	rm, err := d.resolveTarget(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	if in.MimeType == "" {
		in.MimeType = mime.TypeByExtension(filepath.Ext(in.Filename))
	}
	mediaType := platformMediaType(in.MimeType)

	up, err := d.media.Upload(ctx, media.UploadInput{
		Filename: in.Filename,
		MimeType: in.MimeType,
		Content:  in.Content,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("upload media: %w", err)
	}

	res, err := d.platform.SendMediaID(ctx, rm.Handle, mediaType, up.MediaID, in.Caption, in.ReplyTo)
	if err != nil {
		return Outcome{}, fmt.Errorf("platform send: %w", err)
	}

	draft := message.Draft{
		RoomID:  rm.ID,
		AgentID: &agentID,
		Kind:    message.KindMedia,
		Media: &message.MediaInfo{
			Type:       mediaType,
			PlatformID: up.MediaID,
			BackupKey:  up.BackupKey,
			BackupURL:  up.BackupURL,
			Size:       &up.Size,
			MimeType:   optional(in.MimeType),
			Filename:   optional(in.Filename),
		},
	}
	if in.Caption != "" {
		draft.Body = &in.Caption
	}
	setReply(&draft, in.ReplyTo)
	return d.persistSent(ctx, rm, draft, res.MessageID), nil
}

// MediaRef points at media the platform already hosts.
type MediaRef struct {
	Type    string
	ID      string
	Caption string
	ReplyTo string
}

// SendMediaRef delivers media by its platform id. No upload or backup runs,
// the blob never passes through here.
func (d *Dispatcher) SendMediaRef(ctx context.Context, target Target, agentID string, ref MediaRef) (Outcome, error) {
	if ref.ID == "" {
		return Outcome{}, fmt.Errorf("media id is required")
	}
	rm, err := d.resolveTarget(ctx, target)
	if err != nil {
		return Outcome{}, err
	}
	if ref.Type == "" {
		ref.Type = "document"
	}

	res, err := d.platform.SendMediaID(ctx, rm.Handle, ref.Type, ref.ID, ref.Caption, ref.ReplyTo)
	if err != nil {
		return Outcome{}, fmt.Errorf("platform send: %w", err)
	}

	draft := message.Draft{
		RoomID:  rm.ID,
		AgentID: &agentID,
		Kind:    message.KindMedia,
		Media: &message.MediaInfo{
			Type:       ref.Type,
			PlatformID: ref.ID,
		},
	}
	if ref.Caption != "" {
		draft.Body = &ref.Caption
	}
	setReply(&draft, ref.ReplyTo)
	return d.persistSent(ctx, rm, draft, res.MessageID), nil
}

// SendReaction attaches an emoji reaction to an earlier message.
func (d *Dispatcher) SendReaction(ctx context.Context, target Target, agentID, toExternalID, emoji string) (Outcome, error) {
	if toExternalID == "" {
		return Outcome{}, fmt.Errorf("target external id is required")
	}
	rm, err := d.resolveTarget(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	res, err := d.platform.SendReaction(ctx, rm.Handle, toExternalID, emoji)
	if err != nil {
		return Outcome{}, fmt.Errorf("platform send: %w", err)
	}

	return d.persistSent(ctx, rm, message.Draft{
		RoomID:  rm.ID,
		AgentID: &agentID,
		Kind:    message.KindReaction,
		Reaction: &message.ReactionInfo{
			Emoji:      emoji,
			ToExternal: toExternalID,
		},
	}, res.MessageID), nil
}

// SendLocation shares a pin with the room's contact.
func (d *Dispatcher) SendLocation(ctx context.Context, target Target, agentID string, loc whatsapp.Location) (Outcome, error) {
	rm, err := d.resolveTarget(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	res, err := d.platform.SendLocation(ctx, rm.Handle, loc)
	if err != nil {
		return Outcome{}, fmt.Errorf("platform send: %w", err)
	}

	body := normalize.LocationSummary(loc)
	meta := map[string]any{
		"latitude":  loc.Latitude,
		"longitude": loc.Longitude,
	}
	if loc.Name != "" {
		meta["name"] = loc.Name
	}
	if loc.Address != "" {
		meta["address"] = loc.Address
	}
	return d.persistSent(ctx, rm, message.Draft{
		RoomID:   rm.ID,
		AgentID:  &agentID,
		Kind:     message.KindLocation,
		Body:     &body,
		Metadata: meta,
	}, res.MessageID), nil
}

// SendContacts shares contact cards with the room's contact.
func (d *Dispatcher) SendContacts(ctx context.Context, target Target, agentID string, cards []whatsapp.ContactCard) (Outcome, error) {
	if len(cards) == 0 {
		return Outcome{}, fmt.Errorf("at least one contact card is required")
	}
	rm, err := d.resolveTarget(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	res, err := d.platform.SendContacts(ctx, rm.Handle, cards)
	if err != nil {
		return Outcome{}, fmt.Errorf("platform send: %w", err)
	}

	body := normalize.ContactsSummary(cards)
	return d.persistSent(ctx, rm, message.Draft{
		RoomID:  rm.ID,
		AgentID: &agentID,
		Kind:    message.KindContacts,
		Body:    &body,
	}, res.MessageID), nil
}

// SendTemplate delivers an approved message template.
func (d *Dispatcher) SendTemplate(ctx context.Context, target Target, agentID, name, language string, components []map[string]any) (Outcome, error) {
	if name == "" {
		return Outcome{}, fmt.Errorf("template name is required")
	}
	rm, err := d.resolveTarget(ctx, target)
	if err != nil {
		return Outcome{}, err
	}

	res, err := d.platform.SendTemplate(ctx, rm.Handle, name, language, components)
	if err != nil {
		return Outcome{}, fmt.Errorf("platform send: %w", err)
	}

	body := "template: " + name
	return d.persistSent(ctx, rm, message.Draft{
		RoomID:  rm.ID,
		AgentID: &agentID,
		Kind:    message.KindText,
		Body:    &body,
		Metadata: map[string]any{
			"template": name,
			"language": language,
		},
	}, res.MessageID), nil
}

// persistSent stores the acknowledged message. The platform already accepted
// it, so a store failure here must not look like a send failure.
func (d *Dispatcher) persistSent(ctx context.Context, rm room.Room, draft message.Draft, externalID string) Outcome {
	now := time.Now().UTC()
	status := message.StatusSent
	draft.ExternalID = &externalID
	draft.Status = &status
	draft.StatusAt = &now

	rec, err := d.messages.Persist(ctx, rm, draft)
	if err != nil {
		d.log.Error("message sent but not persisted, local history lost",
			slog.String("external_id", externalID),
			slog.String("room_id", rm.ID),
			slog.Any("error", err))
		return Outcome{ExternalID: externalID}
	}
	return Outcome{Message: rec, ExternalID: externalID, Persisted: true}
}

func setReply(draft *message.Draft, replyTo string) {
	if replyTo != "" {
		draft.ReplyToExternalID = &replyTo
	}
}

// platformMediaType maps a mime type to the Cloud API media category.
func platformMediaType(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "document"
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
