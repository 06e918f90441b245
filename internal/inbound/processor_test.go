package inbound

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waverelay/waverelay/internal/logger"
	"github.com/waverelay/waverelay/internal/media"
	"github.com/waverelay/waverelay/internal/message"
	"github.com/waverelay/waverelay/internal/push"
	"github.com/waverelay/waverelay/internal/room"
	"github.com/waverelay/waverelay/internal/whatsapp"
)

type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string]room.Room
	err   error
}

func (f *fakeRooms) ResolveOrCreate(ctx context.Context, handle, displayName string) (room.Room, bool, error) {
	if f.err != nil {
		return room.Room{}, false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms == nil {
		f.rooms = map[string]room.Room{}
	}
	if r, ok := f.rooms[handle]; ok {
		return r, false, nil
	}
	r := room.Room{ID: uuid.NewString(), Handle: handle, Title: displayName}
	f.rooms[handle] = r
	return r, true, nil
}

type sinkCall struct {
	room  room.Room
	draft message.Draft
}

type statusCall struct {
	externalID string
	status     string
	statusAt   time.Time
}

type fakeSink struct {
	mu         sync.Mutex
	persisted  []sinkCall
	statuses   []statusCall
	persistErr error
	statusErr  error
}

func (f *fakeSink) Persist(ctx context.Context, rm room.Room, d message.Draft) (message.Record, error) {
	if f.persistErr != nil {
		return message.Record{}, f.persistErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, sinkCall{room: rm, draft: d})
	rec := message.Record{
		ID:     uuid.NewString(),
		RoomID: rm.ID,
		Kind:   d.Kind,
		Body:   d.Body,
	}
	return rec, nil
}

func (f *fakeSink) ApplyStatus(ctx context.Context, externalID, status string, statusAt time.Time) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusCall{externalID, status, statusAt})
	return nil
}

type fakeBackup struct {
	res media.BackupResult
	err error
}

func (f *fakeBackup) BackupInbound(ctx context.Context, mediaID, filename string) (media.BackupResult, error) {
	return f.res, f.err
}

type fakePush struct {
	mu    sync.Mutex
	calls []push.Notification
}

func (f *fakePush) Notify(n push.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, n)
}

func textPayload(from, id, body string) whatsapp.Payload {
	return whatsapp.Payload{
		Object: "whatsapp_business_account",
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.Value{
					Contacts: []whatsapp.Contact{{WaID: from, Profile: whatsapp.Profile{Name: "Ada"}}},
					Messages: []whatsapp.Message{{
						From: from, ID: id, Timestamp: "1700000000", Type: "text",
						Text: &whatsapp.Text{Body: body},
					}},
				},
			}},
		}},
	}
}

func TestProcessTextMessage(t *testing.T) {
	rooms := &fakeRooms{}
	sink := &fakeSink{}
	pusher := &fakePush{}
	p := NewProcessor(rooms, sink, nil, pusher)

	stats := p.Process(context.Background(), textPayload("15551234567", "ext-1", "hi"))
	assert.Equal(t, 1, stats.Messages)
	assert.Equal(t, 0, stats.Failed)

	require.Len(t, sink.persisted, 1)
	call := sink.persisted[0]
	assert.Equal(t, "15551234567", call.room.Handle)
	assert.Equal(t, "Ada", call.room.Title)
	assert.Equal(t, message.KindText, call.draft.Kind)
	require.NotNil(t, call.draft.ExternalID)
	assert.Equal(t, "ext-1", *call.draft.ExternalID)
	assert.Equal(t, "2023-11-14T22:13:20Z", call.draft.Metadata["platform_timestamp"])

	require.Len(t, pusher.calls, 1)
	assert.Equal(t, "hi", pusher.calls[0].Preview)
}

func TestProcessStatusCallback(t *testing.T) {
	sink := &fakeSink{}
	p := NewProcessor(&fakeRooms{}, sink, nil, nil)

	payload := whatsapp.Payload{
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Value: whatsapp.Value{
					Statuses: []whatsapp.Status{{
						ID: "ext-1", Status: "delivered", Timestamp: "1700000100",
					}},
				},
			}},
		}},
	}

	stats := p.Process(context.Background(), payload)
	assert.Equal(t, 1, stats.Statuses)
	require.Len(t, sink.statuses, 1)
	assert.Equal(t, "ext-1", sink.statuses[0].externalID)
	assert.Equal(t, "delivered", sink.statuses[0].status)
	assert.Equal(t, time.Unix(1700000100, 0).UTC(), sink.statuses[0].statusAt)
}

func TestProcessMediaMessageBackedUp(t *testing.T) {
	key := "ab/abcd.jpg"
	url := "https://backup.example/ab/abcd.jpg"
	backup := &fakeBackup{res: media.BackupResult{Key: key, URL: &url, Size: 9, MimeType: "image/jpeg"}}
	sink := &fakeSink{}
	p := NewProcessor(&fakeRooms{}, sink, backup, nil)

	payload := whatsapp.Payload{
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Value: whatsapp.Value{
					Messages: []whatsapp.Message{{
						From: "15551234567", ID: "ext-m", Type: "image",
						Image: &whatsapp.Media{ID: "media-1", MimeType: "image/jpeg"},
					}},
				},
			}},
		}},
	}

	stats := p.Process(context.Background(), payload)
	assert.Equal(t, 1, stats.Messages)

	require.Len(t, sink.persisted, 1)
	info := sink.persisted[0].draft.Media
	require.NotNil(t, info)
	assert.Equal(t, "media-1", info.PlatformID)
	require.NotNil(t, info.BackupKey)
	assert.Equal(t, key, *info.BackupKey)
	require.NotNil(t, info.Size)
	assert.Equal(t, int64(9), *info.Size)
}

func TestProcessMediaBackupFailureKeepsPlatformRef(t *testing.T) {
	backup := &fakeBackup{err: assert.AnError}
	sink := &fakeSink{}
	p := NewProcessor(&fakeRooms{}, sink, backup, nil)

	payload := whatsapp.Payload{
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Value: whatsapp.Value{
					Messages: []whatsapp.Message{{
						From: "15551234567", ID: "ext-m", Type: "document",
						Document: &whatsapp.Media{ID: "media-1", Filename: "a.pdf"},
					}},
				},
			}},
		}},
	}

	stats := p.Process(context.Background(), payload)
	assert.Equal(t, 1, stats.Messages, "backup failure must not drop the message")

	info := sink.persisted[0].draft.Media
	require.NotNil(t, info)
	assert.Equal(t, "media-1", info.PlatformID)
	assert.Nil(t, info.BackupKey)
}

func TestProcessContinuesAfterFailedEvent(t *testing.T) {
	rooms := &fakeRooms{}
	sink := &fakeSink{}
	p := NewProcessor(rooms, sink, nil, nil)

	payload := whatsapp.Payload{
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Value: whatsapp.Value{
					Messages: []whatsapp.Message{
						{From: "15551234567", ID: "ext-1", Type: "text"}, // nil text body still persists
						{From: "15557654321", ID: "ext-2", Type: "text", Text: &whatsapp.Text{Body: "ok"}},
					},
				},
			}},
		}},
	}

	stats := p.Process(context.Background(), payload)
	assert.Equal(t, 2, stats.Messages)
	assert.Len(t, sink.persisted, 2)
}

func TestProcessRoomFailureCountsAsFailed(t *testing.T) {
	rooms := &fakeRooms{err: assert.AnError}
	sink := &fakeSink{}
	p := NewProcessor(rooms, sink, nil, nil)

	stats := p.Process(context.Background(), textPayload("15551234567", "ext-1", "hi"))
	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, sink.persisted)
}

func TestProcessUnsupportedTypeStillPersisted(t *testing.T) {
	sink := &fakeSink{}
	p := NewProcessor(&fakeRooms{}, sink, nil, nil)

	payload := whatsapp.Payload{
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Value: whatsapp.Value{
					Messages: []whatsapp.Message{{From: "15551234567", ID: "ext-x", Type: "hologram"}},
				},
			}},
		}},
	}

	stats := p.Process(context.Background(), payload)
	assert.Equal(t, 1, stats.Messages)
	require.Len(t, sink.persisted, 1)
	assert.Equal(t, message.KindUnsupported, sink.persisted[0].draft.Kind)
}

func TestProcessUnsupportedTypeWarnsWithRawMessage(t *testing.T) {
	var buf bytes.Buffer
	prev := logger.L
	logger.L = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	t.Cleanup(func() { logger.L = prev })

	sink := &fakeSink{}
	p := NewProcessor(&fakeRooms{}, sink, nil, nil)

	payload := whatsapp.Payload{
		Entry: []whatsapp.Entry{{
			Changes: []whatsapp.Change{{
				Value: whatsapp.Value{
					Messages: []whatsapp.Message{{From: "15551234567", ID: "ext-x", Type: "hologram"}},
				},
			}},
		}},
	}

	stats := p.Process(context.Background(), payload)
	assert.Equal(t, 1, stats.Messages)

	logged := buf.String()
	assert.Contains(t, logged, "unsupported message type")
	assert.Contains(t, logged, "hologram")
	assert.Contains(t, logged, "ext-x")
}
