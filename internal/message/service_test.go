package message

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waverelay/waverelay/internal/event"
	"github.com/waverelay/waverelay/internal/room"
)

type fakeStore struct {
	mu         sync.Mutex
	records    []Record
	statusRows []struct {
		ExternalID string
		Status     string
		StatusAt   time.Time
	}
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) CreateWithFirstCheck(ctx context.Context, d Draft) (Record, bool, error) {
	if f.createErr != nil {
		return Record{}, false, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ExternalID != nil {
		for _, r := range f.records {
			if r.ExternalID != nil && *r.ExternalID == *d.ExternalID {
				return Record{}, false, ErrDuplicate
			}
		}
	}
	first := true
	for _, r := range f.records {
		if r.RoomID == d.RoomID {
			first = false
			break
		}
	}
	now := time.Now().UTC()
	rec := Record{
		ID:         uuid.NewString(),
		RoomID:     d.RoomID,
		AgentID:    d.AgentID,
		Kind:       d.Kind,
		Body:       d.Body,
		ExternalID: d.ExternalID,
		Status:     d.Status,
		StatusAt:   d.StatusAt,
		Media:      d.Media,
		Reaction:   d.Reaction,
		Metadata:   d.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.records = append(f.records, rec)
	return rec, first, nil
}

func (f *fakeStore) GetByExternalID(ctx context.Context, externalID string) (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ExternalID != nil && *r.ExternalID == externalID {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (f *fakeStore) UpdateStatus(ctx context.Context, externalID, status string, statusAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ExternalID != nil && *r.ExternalID == externalID {
			f.records[i].Status = &status
			f.records[i].StatusAt = &statusAt
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) RecordStatusEvent(ctx context.Context, externalID, status string, statusAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusRows = append(f.statusRows, struct {
		ExternalID string
		Status     string
		StatusAt   time.Time
	}{externalID, status, statusAt})
	return nil
}

func (f *fakeStore) ListByRoom(ctx context.Context, roomID string, limit, offset int64) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Record
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].RoomID == roomID {
			out = append(out, f.records[i])
		}
	}
	if offset < int64(len(out)) {
		out = out[offset:]
	} else {
		out = nil
	}
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []event.Event
	err    error
}

func (c *capturePublisher) Publish(ctx context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *capturePublisher) all() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

type fakeLeads struct {
	lead room.Lead
	err  error
}

func (f *fakeLeads) LeadByHandle(ctx context.Context, handle string) (room.Lead, error) {
	if f.err != nil {
		return room.Lead{}, f.err
	}
	return f.lead, nil
}

func strp(s string) *string { return &s }

func TestPersistFirstMessagePublishesComposite(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := NewDBService(store, pub, nil, true)

	rm := room.Room{ID: uuid.NewString(), Handle: "15551234567", Title: "Ada"}
	rec, err := svc.Persist(context.Background(), rm, Draft{
		RoomID:     rm.ID,
		Kind:       KindText,
		Body:       strp("hi"),
		ExternalID: strp("ext-1"),
	})
	require.NoError(t, err)

	events := pub.all()
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeRoomCreated, events[0].Type)
	assert.Equal(t, rm.ID, events[0].RoomID)

	var payload RoomCreatedPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	assert.Equal(t, rm.Handle, payload.Room.Handle)
	assert.Equal(t, rec.ID, payload.Message.ID)
	require.NotNil(t, payload.Message.Body)
	assert.Equal(t, "hi", *payload.Message.Body)
}

func TestPersistFirstMessageCompositeCarriesLead(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	leadID := uuid.NewString()
	leads := &fakeLeads{lead: room.Lead{ID: leadID, Handle: "15551234567", Name: "Ada", Grade: "new"}}
	svc := NewDBService(store, pub, leads, true)

	rm := room.Room{ID: uuid.NewString(), Handle: "15551234567", Title: "Ada", LeadID: &leadID}
	_, err := svc.Persist(context.Background(), rm, Draft{
		RoomID:     rm.ID,
		Kind:       KindText,
		Body:       strp("hi"),
		ExternalID: strp("ext-1"),
	})
	require.NoError(t, err)

	events := pub.all()
	require.Len(t, events, 1)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(events[0].Data, &keys))
	require.Contains(t, keys, "lead")

	var payload RoomCreatedPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	require.NotNil(t, payload.Lead, "room with a linked contact publishes it in the composite")
	assert.Equal(t, leadID, payload.Lead.ID)
	assert.Equal(t, "Ada", payload.Lead.Name)
}

func TestPersistCompositeLeadLookupFailureDegradesToNull(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	leadID := uuid.NewString()
	svc := NewDBService(store, pub, &fakeLeads{err: assert.AnError}, true)

	rm := room.Room{ID: uuid.NewString(), Handle: "15551234567", LeadID: &leadID}
	_, err := svc.Persist(context.Background(), rm, Draft{
		RoomID: rm.ID, Kind: KindText, Body: strp("hi"),
	})
	require.NoError(t, err)

	events := pub.all()
	require.Len(t, events, 1)
	var payload RoomCreatedPayload
	require.NoError(t, json.Unmarshal(events[0].Data, &payload))
	assert.Nil(t, payload.Lead)
}

func TestPersistSecondMessagePublishesPlainEvent(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := NewDBService(store, pub, nil, true)

	rm := room.Room{ID: uuid.NewString(), Handle: "15551234567"}
	_, err := svc.Persist(context.Background(), rm, Draft{
		RoomID: rm.ID, Kind: KindText, Body: strp("first"), ExternalID: strp("ext-1"),
	})
	require.NoError(t, err)
	_, err = svc.Persist(context.Background(), rm, Draft{
		RoomID: rm.ID, Kind: KindText, Body: strp("second"), ExternalID: strp("ext-2"),
	})
	require.NoError(t, err)

	events := pub.all()
	require.Len(t, events, 2)
	assert.Equal(t, event.TypeRoomCreated, events[0].Type)
	assert.Equal(t, event.TypeMessageCreated, events[1].Type)
}

func TestPersistDuplicateDeliveryReturnsExisting(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{}
	svc := NewDBService(store, pub, nil, true)

	rm := room.Room{ID: uuid.NewString(), Handle: "15551234567"}
	first, err := svc.Persist(context.Background(), rm, Draft{
		RoomID: rm.ID, Kind: KindText, Body: strp("hi"), ExternalID: strp("ext-1"),
	})
	require.NoError(t, err)

	again, err := svc.Persist(context.Background(), rm, Draft{
		RoomID: rm.ID, Kind: KindText, Body: strp("hi"), ExternalID: strp("ext-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, pub.all(), 1, "duplicate must not publish again")
}

func TestPersistUnsupportedKindIsStored(t *testing.T) {
	store := newFakeStore()
	svc := NewDBService(store, &capturePublisher{}, nil, true)

	rm := room.Room{ID: uuid.NewString(), Handle: "15551234567"}
	rec, err := svc.Persist(context.Background(), rm, Draft{
		RoomID:     rm.ID,
		Kind:       KindUnsupported,
		ExternalID: strp("ext-weird"),
		Metadata:   map[string]any{"platform_type": "hologram"},
	})
	require.NoError(t, err)
	assert.Equal(t, KindUnsupported, rec.Kind)
	assert.Equal(t, "hologram", rec.Metadata["platform_type"])
}

func TestPersistInvalidDraftRejected(t *testing.T) {
	svc := NewDBService(newFakeStore(), &capturePublisher{}, nil, true)

	_, err := svc.Persist(context.Background(), room.Room{}, Draft{Kind: KindText})
	require.Error(t, err)

	_, err = svc.Persist(context.Background(), room.Room{}, Draft{RoomID: uuid.NewString(), Kind: "bogus"})
	require.Error(t, err)
}

func TestPersistPublishFailureDoesNotFail(t *testing.T) {
	store := newFakeStore()
	pub := &capturePublisher{err: assert.AnError}
	svc := NewDBService(store, pub, nil, true)

	rm := room.Room{ID: uuid.NewString(), Handle: "15551234567"}
	rec, err := svc.Persist(context.Background(), rm, Draft{
		RoomID: rm.ID, Kind: KindText, Body: strp("hi"),
	})
	require.NoError(t, err, "persisted message survives a publish failure")
	assert.NotEmpty(t, rec.ID)
}

func TestListByRoomClampsLimit(t *testing.T) {
	store := newFakeStore()
	svc := NewDBService(store, &capturePublisher{}, nil, true)

	rm := room.Room{ID: uuid.NewString()}
	for i := 0; i < 3; i++ {
		_, err := svc.Persist(context.Background(), rm, Draft{RoomID: rm.ID, Kind: KindText, Body: strp("m")})
		require.NoError(t, err)
	}

	recs, err := svc.ListByRoom(context.Background(), rm.ID, -5, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}
