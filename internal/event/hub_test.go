package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubGlobalSubscriberReceivesAllRooms(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("")
	defer cancel()

	ev1, err := New(TypeMessageCreated, "room-a", map[string]string{"body": "one"})
	require.NoError(t, err)
	ev2, err := New(TypeMessageCreated, "room-b", map[string]string{"body": "two"})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), ev1))
	require.NoError(t, hub.Publish(context.Background(), ev2))

	assert.Equal(t, "room-a", recv(t, ch).RoomID)
	assert.Equal(t, "room-b", recv(t, ch).RoomID)
}

func TestHubRoomScopedSubscriberFilters(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("room-a")
	defer cancel()

	evOther, err := New(TypeMessageCreated, "room-b", nil)
	require.NoError(t, err)
	evMine, err := New(TypeRoomCreated, "room-a", nil)
	require.NoError(t, err)

	require.NoError(t, hub.Publish(context.Background(), evOther))
	require.NoError(t, hub.Publish(context.Background(), evMine))

	got := recv(t, ch)
	assert.Equal(t, TypeRoomCreated, got.Type)
	assert.Equal(t, "room-a", got.RoomID)
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("")
	cancel()

	ev, err := New(TypeMessageCreated, "room-a", nil)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), ev))

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("")
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			ev, err := New(TypeMessageCreated, "room-a", nil)
			require.NoError(t, err)
			_ = hub.Publish(context.Background(), ev)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestMultiPublisherContinuesAfterFailure(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("")
	defer cancel()

	multi := NewMultiPublisher(failingPublisher{}, hub)

	ev, err := New(TypeMessageStatus, "room-a", nil)
	require.NoError(t, err)
	err = multi.Publish(context.Background(), ev)
	require.Error(t, err)

	assert.Equal(t, TypeMessageStatus, recv(t, ch).Type)
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, ev Event) error {
	return assert.AnError
}
