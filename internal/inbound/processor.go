// Package inbound turns verified webhook payloads into stored conversations,
// messages and status transitions.
package inbound

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/waverelay/waverelay/internal/logger"
	"github.com/waverelay/waverelay/internal/media"
	"github.com/waverelay/waverelay/internal/message"
	"github.com/waverelay/waverelay/internal/normalize"
	"github.com/waverelay/waverelay/internal/push"
	"github.com/waverelay/waverelay/internal/room"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

type roomProvisioner interface {
	ResolveOrCreate(ctx context.Context, handle, displayName string) (room.Room, bool, error)
}

type messageSink interface {
	Persist(ctx context.Context, rm room.Room, d message.Draft) (message.Record, error)
	ApplyStatus(ctx context.Context, externalID, status string, statusAt time.Time) error
}

type mediaBackup interface {
	BackupInbound(ctx context.Context, mediaID, filename string) (media.BackupResult, error)
}

type notifier interface {
	Notify(n push.Notification)
}

// Stats summarizes one processed payload.
type Stats struct {
	Messages int
	Statuses int
	Failed   int
}

// Processor walks a webhook payload and hands each event to the right
// service. One broken event never blocks the rest of the batch, the platform
// retries the whole delivery on non-2xx so per-event failures are logged and
// skipped instead.
type Processor struct {
	rooms    roomProvisioner
	messages messageSink
	media    mediaBackup
	push     notifier
	log      *slog.Logger
}

func NewProcessor(rooms roomProvisioner, messages messageSink, backup mediaBackup, push notifier) *Processor {
	return &Processor{
		rooms:    rooms,
		messages: messages,
		media:    backup,
		push:     push,
		log:      logger.L.With(slog.String("service", "inbound")),
	}
}

// Process handles every message and status in the payload.
func (p *Processor) Process(ctx context.Context, payload whatsapp.Payload) Stats {
	var stats Stats
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			names := contactNames(change.Value.Contacts)
			for _, msg := range change.Value.Messages {
				if err := p.processMessage(ctx, msg, names[msg.From]); err != nil {
					stats.Failed++
					p.log.Error("inbound message failed",
						slog.String("external_id", msg.ID),
						slog.String("from", msg.From),
						slog.Any("error", err))
					continue
				}
				stats.Messages++
			}
			for _, st := range change.Value.Statuses {
				if err := p.messages.ApplyStatus(ctx, st.ID, st.Status, epochTime(st.Timestamp)); err != nil {
					stats.Failed++
					p.log.Error("status callback failed",
						slog.String("external_id", st.ID),
						slog.String("status", st.Status),
						slog.Any("error", err))
					continue
				}
				stats.Statuses++
			}
		}
	}
	return stats
}

func (p *Processor) processMessage(ctx context.Context, msg whatsapp.Message, displayName string) error {
	rm, created, err := p.rooms.ResolveOrCreate(ctx, msg.From, displayName)
	if err != nil {
		return err
	}
	if created {
		p.log.Info("conversation opened",
			slog.String("room_id", rm.ID),
			slog.String("handle", rm.Handle))
	}

	n := normalize.Normalize(msg)
	if n.Kind == message.KindUnsupported {
		p.log.Warn("unsupported message type",
			slog.String("external_id", msg.ID),
			slog.String("platform_type", msg.Type),
			slog.Any("raw", msg))
	}
	draft := message.Draft{
		RoomID:            rm.ID,
		Kind:              n.Kind,
		Body:              n.Body,
		ExternalID:        &msg.ID,
		Media:             n.Media,
		Reaction:          n.Reaction,
		ReplyToExternalID: n.ReplyTo,
		Metadata:          n.Metadata,
	}
	if ts := epochTime(msg.Timestamp); !ts.IsZero() {
		if draft.Metadata == nil {
			draft.Metadata = map[string]any{}
		}
		draft.Metadata["platform_timestamp"] = ts.Format(time.RFC3339)
	}

	p.backupMedia(ctx, draft.Media)

	rec, err := p.messages.Persist(ctx, rm, draft)
	if err != nil {
		return err
	}

	if p.push != nil {
		p.push.Notify(push.Notification{
			RoomID:     rm.ID,
			RoomHandle: rm.Handle,
			Title:      rm.Title,
			Preview:    preview(rec),
		})
	}
	return nil
}

// backupMedia mirrors inbound media into the backup store. Failure leaves
// the message with only its platform reference.
func (p *Processor) backupMedia(ctx context.Context, info *message.MediaInfo) {
	if p.media == nil || info == nil || info.PlatformID == "" {
		return
	}
	filename := ""
	if info.Filename != nil {
		filename = *info.Filename
	}
	res, err := p.media.BackupInbound(ctx, info.PlatformID, filename)
	if err != nil {
		p.log.Warn("inbound media backup failed",
			slog.String("media_id", info.PlatformID),
			slog.Any("error", err))
		return
	}
	info.BackupKey = &res.Key
	info.BackupURL = res.URL
	if res.Size > 0 {
		info.Size = &res.Size
	}
	if info.MimeType == nil && res.MimeType != "" {
		mime := res.MimeType
		info.MimeType = &mime
	}
}

func contactNames(contacts []whatsapp.Contact) map[string]string {
	if len(contacts) == 0 {
		return nil
	}
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		names[c.WaID] = c.Profile.Name
	}
	return names
}

func preview(rec message.Record) string {
	if rec.Body != nil && *rec.Body != "" {
		return *rec.Body
	}
	return string(rec.Kind)
}

func epochTime(raw string) time.Time {
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
