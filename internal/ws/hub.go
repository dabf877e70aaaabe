package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/observability"
)

// ErrRoomNotActive is returned when a commit races the room being torn down
// after its last session left.
var ErrRoomNotActive = errors.New("room not active")

// RoomState is the in-memory moderation state a commit may read and update.
// The room worker applies updates only after the commit succeeds.
type RoomState struct {
	Paused bool
}

// CommitFn performs the persistence for one room mutation and returns the
// events to broadcast. It runs on the room's worker goroutine, so commits in
// the same room are serialized and fan-out order matches commit order. No
// room lock is held while it runs.
type CommitFn func(state *RoomState) ([]models.ChatEvent, error)

type commitJob struct {
	apply   CommitFn
	exclude *Session
	reply   chan error
}

// Hub is the room registry: room key to the set of connected sessions joined
// to it. Mutations are serialized per room so unrelated rooms proceed
// concurrently.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	key  string
	kind string

	mu       sync.Mutex
	sessions map[*Session]bool
	state    RoomState
	closed   bool

	commits chan commitJob
	done    chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// Join registers the session with the room, creating the room on first join.
// Joining twice from the same session is a no-op. paused seeds the room's
// moderation state when the room is created. A session whose connection
// already went away is refused: commands run on their own goroutines, so a
// join can land after Disconnect cleaned the session up, and registering it
// then would leave a dead session holding the room open.
func (h *Hub) Join(ref models.RoomRef, s *Session, paused bool) {
	key := ref.Key()
	for {
		r := h.room(ref, paused)

		r.mu.Lock()
		if r.closed {
			// lost a race with teardown; retry against a fresh room
			r.mu.Unlock()
			continue
		}
		if r.sessions[s] {
			r.mu.Unlock()
			return
		}
		if !s.trackJoin(key) {
			h.release(key, r)
			return
		}
		r.sessions[s] = true
		r.mu.Unlock()
		return
	}
}

// room returns the room for ref, creating it and starting its worker on
// demand.
func (h *Hub) room(ref models.RoomRef, paused bool) *room {
	key := ref.Key()
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[key]
	if !ok {
		r = &room{
			key:      key,
			kind:     string(ref.Kind),
			sessions: make(map[*Session]bool),
			state:    RoomState{Paused: paused},
			commits:  make(chan commitJob),
			done:     make(chan struct{}),
		}
		h.rooms[key] = r
		go r.run()
	}
	return r
}

// release tears the room down when no sessions remain. Callers hold r.mu;
// release unlocks it.
func (h *Hub) release(key string, r *room) {
	empty := !r.closed && len(r.sessions) == 0
	if empty {
		r.closed = true
		close(r.done)
	}
	r.mu.Unlock()

	if empty {
		h.mu.Lock()
		if h.rooms[key] == r {
			delete(h.rooms, key)
		}
		h.mu.Unlock()
	}
}

// Leave removes the session from the room; a second leave is a no-op. The
// room is torn down when its last session leaves.
func (h *Hub) Leave(key string, s *Session) {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	if !r.sessions[s] {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, s)
	s.trackLeave(key)
	h.release(key, r)
}

// Disconnect marks the session closed and removes it from every room it
// joined. Called exactly once when the connection goes away; an in-flight
// join that loses the race against it is refused by trackJoin, so no registry
// entry leaks.
func (h *Hub) Disconnect(s *Session) {
	for _, key := range s.detach() {
		h.Leave(key, s)
	}
}

// Joined reports whether the session is currently joined to the room.
func (h *Hub) Joined(key string, s *Session) bool {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[s]
}

// Paused reports the room's in-memory pause state. The second return is
// false when the room has no connected sessions.
func (h *Hub) Paused(key string) (bool, bool) {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return false, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Paused, true
}

// Commit runs apply on the room's worker and, on success, broadcasts the
// returned events to every joined session except exclude. Commits in one
// room are totally ordered; every session observes events in that order.
// Requires an active room; senders are joined by definition.
func (h *Hub) Commit(ctx context.Context, key string, exclude *Session, apply CommitFn) error {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return ErrRoomNotActive
	}
	return r.commit(ctx, exclude, apply)
}

// CommitDetached commits against the room whether or not any session is
// joined, activating it for the duration of the commit. Moderation goes
// through here: pausing or clearing a valid room must succeed while nobody is
// connected. seedPaused initializes the moderation state when the room is not
// already active; the room does not linger afterwards unless a session joined
// it in the meantime.
func (h *Hub) CommitDetached(ctx context.Context, ref models.RoomRef, seedPaused bool, apply CommitFn) error {
	key := ref.Key()
	for {
		r := h.room(ref, seedPaused)
		err := r.commit(ctx, nil, apply)
		if errors.Is(err, ErrRoomNotActive) {
			// torn down between lookup and commit; retry on a fresh room
			continue
		}
		r.mu.Lock()
		h.release(key, r)
		return err
	}
}

func (r *room) commit(ctx context.Context, exclude *Session, apply CommitFn) error {
	job := commitJob{apply: apply, exclude: exclude, reply: make(chan error, 1)}
	select {
	case r.commits <- job:
	case <-r.done:
		return ErrRoomNotActive
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-job.reply:
		return err
	case <-r.done:
		// the worker may have answered just before teardown
		select {
		case err := <-job.reply:
			return err
		default:
			return ErrRoomNotActive
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast pushes an already-committed event to every session in the room
// except exclude, bypassing the commit queue. Used for events whose ordering
// is established elsewhere.
func (h *Hub) Broadcast(key string, event models.ChatEvent, exclude *Session) {
	h.mu.RLock()
	r, ok := h.rooms[key]
	h.mu.RUnlock()
	if !ok {
		return
	}
	r.fanOut(event, exclude)
}

func (r *room) run() {
	for {
		select {
		case job := <-r.commits:
			state := r.snapshotState()
			events, err := job.apply(&state)
			if err == nil {
				r.mu.Lock()
				r.state = state
				r.mu.Unlock()
				for _, ev := range events {
					r.fanOut(ev, job.exclude)
				}
			}
			job.reply <- err
		case <-r.done:
			return
		}
	}
}

// snapshotState copies the room state for a commit. Checking and applying
// moderation state stays a quick in-memory operation; the copy is written
// back only after the commit's persistence succeeds.
func (r *room) snapshotState() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *room) fanOut(event models.ChatEvent, exclude *Session) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		if s == exclude {
			continue
		}
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.enqueueEvent(event)
	}
	observability.IncBroadcast(r.kind, event.Type)
}
