package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mander92/syuso-chat/internal/models"
)

func newTestSession(id string) *Session {
	return &Session{
		ID:    id,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]bool),
	}
}

func receivedEvents(t *testing.T, s *Session, want int) []models.ChatEvent {
	t.Helper()
	events := make([]models.ChatEvent, 0, want)
	deadline := time.After(2 * time.Second)
	for len(events) < want {
		select {
		case payload := <-s.send:
			var event models.ChatEvent
			require.NoError(t, json.Unmarshal(payload, &event))
			events = append(events, event)
		case <-deadline:
			t.Fatalf("timed out waiting for events: got %d want %d", len(events), want)
		}
	}
	return events
}

func TestJoinIsIdempotent(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 1}
	s := newTestSession("a")

	hub.Join(ref, s, false)
	hub.Join(ref, s, false)

	hub.Broadcast(ref.Key(), models.ChatEvent{Type: models.EventClear, RoomKey: ref.Key()}, nil)
	events := receivedEvents(t, s, 1)
	assert.Equal(t, models.EventClear, events[0].Type)

	select {
	case payload := <-s.send:
		t.Fatalf("double join produced duplicate delivery: %s", payload)
	default:
	}
}

func TestLeaveIsIdempotentAndTearsDownRoom(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 2}
	s := newTestSession("a")

	hub.Join(ref, s, true)
	paused, active := hub.Paused(ref.Key())
	require.True(t, active)
	assert.True(t, paused)

	hub.Leave(ref.Key(), s)
	hub.Leave(ref.Key(), s)

	_, active = hub.Paused(ref.Key())
	assert.False(t, active)
	assert.False(t, hub.Joined(ref.Key(), s))
}

func TestDisconnectRemovesSessionFromEveryRoom(t *testing.T) {
	hub := NewHub()
	first := models.RoomRef{Kind: models.RoomService, ID: 3}
	second := models.RoomRef{Kind: models.RoomGeneral, ID: 4}
	s := newTestSession("a")
	other := newTestSession("b")

	hub.Join(first, s, false)
	hub.Join(second, s, false)
	hub.Join(second, other, false)

	hub.Disconnect(s)

	assert.False(t, hub.Joined(first.Key(), s))
	assert.False(t, hub.Joined(second.Key(), s))
	assert.True(t, hub.Joined(second.Key(), other))
	assert.Empty(t, s.joinedRooms())
}

func TestJoinAfterDisconnectIsRefused(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 9}
	s := newTestSession("a")

	hub.Join(ref, s, false)
	hub.Disconnect(s)

	// commands run on their own goroutines, so a join can land after the
	// disconnect already cleaned the session up
	hub.Join(ref, s, false)

	assert.False(t, hub.Joined(ref.Key(), s))
	_, active := hub.Paused(ref.Key())
	assert.False(t, active, "dead session kept the room alive")

	// the refused join must not poison the room for live sessions
	other := newTestSession("b")
	hub.Join(ref, other, false)
	assert.True(t, hub.Joined(ref.Key(), other))
}

func TestCommitDetachedActivatesEmptyRoom(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 12}

	applied := false
	err := hub.CommitDetached(context.Background(), ref, true, func(state *RoomState) ([]models.ChatEvent, error) {
		applied = true
		assert.True(t, state.Paused, "seed must initialize the detached room's state")
		return []models.ChatEvent{{Type: models.EventPause, RoomKey: ref.Key()}}, nil
	})
	require.NoError(t, err)
	assert.True(t, applied)

	// nobody joined, so the room does not linger
	_, active := hub.Paused(ref.Key())
	assert.False(t, active)
}

func TestCommitDetachedUsesActiveRoom(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 13}
	s := newTestSession("a")
	hub.Join(ref, s, false)

	paused := true
	err := hub.CommitDetached(context.Background(), ref, false, func(state *RoomState) ([]models.ChatEvent, error) {
		state.Paused = true
		return []models.ChatEvent{{Type: models.EventPause, RoomKey: ref.Key(), Paused: &paused}}, nil
	})
	require.NoError(t, err)

	events := receivedEvents(t, s, 1)
	assert.Equal(t, models.EventPause, events[0].Type)

	// the room keeps its sessions and the committed state
	got, active := hub.Paused(ref.Key())
	require.True(t, active)
	assert.True(t, got)
	assert.True(t, hub.Joined(ref.Key(), s))
}

func TestBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomGeneral, ID: 5}
	sender := newTestSession("sender")
	receiver := newTestSession("receiver")

	hub.Join(ref, sender, false)
	hub.Join(ref, receiver, false)

	hub.Broadcast(ref.Key(), models.ChatEvent{Type: models.EventClear, RoomKey: ref.Key()}, sender)

	receivedEvents(t, receiver, 1)
	select {
	case payload := <-sender.send:
		t.Fatalf("excluded session received broadcast: %s", payload)
	default:
	}
}

func TestCommitOnInactiveRoom(t *testing.T) {
	hub := NewHub()

	err := hub.Commit(context.Background(), "service:99", nil, func(state *RoomState) ([]models.ChatEvent, error) {
		t.Fatal("apply must not run for an inactive room")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRoomNotActive)
}

func TestCommitFailureBroadcastsNothing(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 6}
	s := newTestSession("a")
	hub.Join(ref, s, false)

	err := hub.Commit(context.Background(), ref.Key(), nil, func(state *RoomState) ([]models.ChatEvent, error) {
		state.Paused = true
		return []models.ChatEvent{{Type: models.EventPause, RoomKey: ref.Key()}}, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	select {
	case payload := <-s.send:
		t.Fatalf("failed commit broadcast an event: %s", payload)
	default:
	}

	// state changes from a failed commit are discarded too
	paused, active := hub.Paused(ref.Key())
	require.True(t, active)
	assert.False(t, paused)
}

func TestCommitOrderIsDeliveryOrder(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 7}
	first := newTestSession("a")
	second := newTestSession("b")
	hub.Join(ref, first, false)
	hub.Join(ref, second, false)

	const commits = 50
	var next int64
	var wg sync.WaitGroup
	for i := 0; i < commits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := hub.Commit(context.Background(), ref.Key(), nil, func(state *RoomState) ([]models.ChatEvent, error) {
				next++
				return []models.ChatEvent{{Type: models.EventDelete, RoomKey: ref.Key(), MessageID: next}}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for _, s := range []*Session{first, second} {
		events := receivedEvents(t, s, commits)
		for i, event := range events {
			require.Equal(t, int64(i+1), event.MessageID, "session %s saw events out of commit order", s.ID)
		}
	}
}

func TestPauseConvergesOnLastCommittedValue(t *testing.T) {
	hub := NewHub()
	ref := models.RoomRef{Kind: models.RoomService, ID: 8}
	s := newTestSession("a")
	hub.Join(ref, s, false)

	setPaused := func(paused bool) {
		err := hub.Commit(context.Background(), ref.Key(), nil, func(state *RoomState) ([]models.ChatEvent, error) {
			state.Paused = paused
			return []models.ChatEvent{{Type: models.EventPause, RoomKey: ref.Key(), Paused: &paused}}, nil
		})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			setPaused(true)
		}()
	}
	wg.Wait()
	setPaused(false)

	paused, active := hub.Paused(ref.Key())
	require.True(t, active)
	assert.False(t, paused)

	events := receivedEvents(t, s, 3)
	last := events[len(events)-1]
	require.NotNil(t, last.Paused)
	assert.False(t, *last.Paused)
}
