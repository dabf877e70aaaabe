package reconcile

import (
	"context"
	"log"
	"sync"

	"github.com/mander92/syuso-chat/internal/models"
)

// UnreadAPI is the HTTP side of the unread ledger, used once per connect to
// reconcile and on every room open to reset.
type UnreadAPI interface {
	Snapshot(ctx context.Context) (map[string]int, error)
	Reset(ctx context.Context, roomKey string) error
}

// Notifier surfaces a toast for messages arriving in rooms the user is not
// looking at.
type Notifier interface {
	Notify(roomKey string, msg models.MessageView)
}

// ViewModel is the single owner of client-side badge state. It is mutated
// only by applying protocol events in arrival order and by the explicit
// open/close calls; the rendering layer just reads it.
//
// Rooms are tracked at two levels: live (joined at the protocol level so
// events keep flowing) and open (UI rendered, resets the counter). A
// background room is live but not open.
type ViewModel struct {
	selfID   int
	api      UnreadAPI
	notifier Notifier
	cache    *Cache

	mu         sync.Mutex
	unread     map[string]int
	open       map[string]bool
	live       map[string]bool
	reconciled bool
}

// NewViewModel builds a ViewModel for one authenticated user. notifier and
// cache may be nil.
func NewViewModel(selfID int, api UnreadAPI, notifier Notifier, cache *Cache) *ViewModel {
	return &ViewModel{
		selfID:   selfID,
		api:      api,
		notifier: notifier,
		cache:    cache,
		unread:   map[string]int{},
		open:     map[string]bool{},
		live:     map[string]bool{},
	}
}

// Restore loads the cached snapshot as a fast-path render before the network
// snapshot returns. The cache is never the source of truth; Reconcile
// replaces whatever this loads.
func (vm *ViewModel) Restore() {
	if vm.cache == nil {
		return
	}
	counts, err := vm.cache.Load(vm.selfID)
	if err != nil || counts == nil {
		return
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.reconciled {
		return
	}
	vm.unread = counts
}

// Reconcile fetches the authoritative snapshot and replaces local state with
// it. Call once per connect, before applying live deltas.
func (vm *ViewModel) Reconcile(ctx context.Context) error {
	counts, err := vm.api.Snapshot(ctx)
	if err != nil {
		return err
	}
	if counts == nil {
		counts = map[string]int{}
	}

	vm.mu.Lock()
	for key := range counts {
		if vm.open[key] {
			delete(counts, key)
		}
	}
	vm.unread = counts
	vm.reconciled = true
	vm.mu.Unlock()

	vm.persist()
	return nil
}

// Apply merges one pushed event into badge state. Messages from the user
// themselves, and messages for the currently open room, never count.
func (vm *ViewModel) Apply(event models.ChatEvent) {
	switch event.Type {
	case models.EventMessage:
		if event.Message == nil || event.Message.SenderID == vm.selfID {
			return
		}
		vm.mu.Lock()
		if vm.open[event.RoomKey] {
			vm.mu.Unlock()
			return
		}
		vm.unread[event.RoomKey]++
		vm.mu.Unlock()
		if vm.notifier != nil {
			vm.notifier.Notify(event.RoomKey, *event.Message)
		}
		vm.persist()
	case models.EventClear:
		vm.mu.Lock()
		delete(vm.unread, event.RoomKey)
		vm.mu.Unlock()
		vm.persist()
	}
}

// OpenRoom marks the room as rendered, zeroes its badge and pushes the reset
// to the ledger so other devices converge.
func (vm *ViewModel) OpenRoom(ctx context.Context, roomKey string) error {
	vm.mu.Lock()
	vm.open[roomKey] = true
	vm.live[roomKey] = true
	delete(vm.unread, roomKey)
	vm.mu.Unlock()
	vm.persist()
	return vm.api.Reset(ctx, roomKey)
}

// CloseRoom demotes the room back to background tracking; it stays live so
// badge increments keep arriving.
func (vm *ViewModel) CloseRoom(roomKey string) {
	vm.mu.Lock()
	delete(vm.open, roomKey)
	vm.mu.Unlock()
}

// TrackLive records a protocol-level join for badge-only tracking.
func (vm *ViewModel) TrackLive(roomKey string) {
	vm.mu.Lock()
	vm.live[roomKey] = true
	vm.mu.Unlock()
}

// UntrackLive records a leave.
func (vm *ViewModel) UntrackLive(roomKey string) {
	vm.mu.Lock()
	delete(vm.live, roomKey)
	delete(vm.open, roomKey)
	vm.mu.Unlock()
}

// Unread returns a copy of the badge map.
func (vm *ViewModel) Unread() map[string]int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make(map[string]int, len(vm.unread))
	for key, count := range vm.unread {
		out[key] = count
	}
	return out
}

// UnreadFor returns one room's badge count.
func (vm *ViewModel) UnreadFor(roomKey string) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.unread[roomKey]
}

// IsOpen reports whether the room is currently rendered.
func (vm *ViewModel) IsOpen(roomKey string) bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.open[roomKey]
}

// Run applies events from the connector until its channel closes.
func (vm *ViewModel) Run(events <-chan models.ChatEvent) {
	for event := range events {
		vm.Apply(event)
	}
}

func (vm *ViewModel) persist() {
	if vm.cache == nil {
		return
	}
	if err := vm.cache.Save(vm.selfID, vm.Unread()); err != nil {
		log.Printf("unread cache write failed: %v", err)
	}
}
