package reconcile

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mander92/syuso-chat/internal/models"
)

type fakeUnreadAPI struct {
	mu       sync.Mutex
	snapshot map[string]int
	resets   []string
	err      error
}

func (f *fakeUnreadAPI) Snapshot(ctx context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]int, len(f.snapshot))
	for key, count := range f.snapshot {
		out[key] = count
	}
	return out, nil
}

func (f *fakeUnreadAPI) Reset(ctx context.Context, roomKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, roomKey)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	rooms []string
}

func (f *fakeNotifier) Notify(roomKey string, msg models.MessageView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, roomKey)
}

func messageEvent(roomKey string, senderID int) models.ChatEvent {
	return models.ChatEvent{
		Type:    models.EventMessage,
		RoomKey: roomKey,
		Message: &models.MessageView{Message: models.Message{SenderID: senderID}},
	}
}

func TestReconcileThenLiveDeltas(t *testing.T) {
	api := &fakeUnreadAPI{snapshot: map[string]int{"service:10": 3}}
	vm := NewViewModel(2, api, nil, nil)

	require.NoError(t, vm.Reconcile(context.Background()))
	assert.Equal(t, 3, vm.UnreadFor("service:10"))

	vm.Apply(messageEvent("service:10", 1))
	assert.Equal(t, 4, vm.UnreadFor("service:10"), "live deltas stack on the snapshot")
}

func TestOwnMessagesNeverCount(t *testing.T) {
	vm := NewViewModel(2, &fakeUnreadAPI{}, nil, nil)
	vm.Apply(messageEvent("service:10", 2))
	assert.Zero(t, vm.UnreadFor("service:10"))
}

func TestOpenRoomSuppressesCountingAndResets(t *testing.T) {
	api := &fakeUnreadAPI{}
	notifier := &fakeNotifier{}
	vm := NewViewModel(2, api, notifier, nil)

	vm.Apply(messageEvent("service:10", 1))
	require.Equal(t, 1, vm.UnreadFor("service:10"))

	require.NoError(t, vm.OpenRoom(context.Background(), "service:10"))
	assert.Zero(t, vm.UnreadFor("service:10"))
	assert.Equal(t, []string{"service:10"}, api.resets)

	// open room: no badge, no toast
	vm.Apply(messageEvent("service:10", 1))
	assert.Zero(t, vm.UnreadFor("service:10"))
	assert.Empty(t, notifier.rooms)

	// background again: counting resumes
	vm.CloseRoom("service:10")
	vm.Apply(messageEvent("service:10", 1))
	assert.Equal(t, 1, vm.UnreadFor("service:10"))
	assert.Equal(t, []string{"service:10"}, notifier.rooms)
}

func TestClearEventZeroesBadge(t *testing.T) {
	vm := NewViewModel(2, &fakeUnreadAPI{}, nil, nil)
	vm.Apply(messageEvent("service:10", 1))
	vm.Apply(messageEvent("service:10", 3))
	require.Equal(t, 2, vm.UnreadFor("service:10"))

	vm.Apply(models.ChatEvent{Type: models.EventClear, RoomKey: "service:10"})
	assert.Zero(t, vm.UnreadFor("service:10"))
}

func TestReconcileDropsCountsForOpenRooms(t *testing.T) {
	api := &fakeUnreadAPI{snapshot: map[string]int{"service:10": 5, "general:7": 2}}
	vm := NewViewModel(2, api, nil, nil)

	require.NoError(t, vm.OpenRoom(context.Background(), "service:10"))
	require.NoError(t, vm.Reconcile(context.Background()))

	assert.Zero(t, vm.UnreadFor("service:10"), "snapshot must not resurrect a badge for the room on screen")
	assert.Equal(t, 2, vm.UnreadFor("general:7"))
}

func TestCacheRestoreIsFastPathOnly(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, cache.Save(2, map[string]int{"service:10": 9}))

	api := &fakeUnreadAPI{snapshot: map[string]int{"service:10": 1}}
	vm := NewViewModel(2, api, nil, cache)

	vm.Restore()
	assert.Equal(t, 9, vm.UnreadFor("service:10"), "cached value renders before the network returns")

	require.NoError(t, vm.Reconcile(context.Background()))
	assert.Equal(t, 1, vm.UnreadFor("service:10"), "network snapshot is authoritative")

	// restore after reconcile must not clobber live state
	vm.Restore()
	assert.Equal(t, 1, vm.UnreadFor("service:10"))
}

func TestCacheMissIsSilent(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	vm := NewViewModel(4, &fakeUnreadAPI{}, nil, cache)
	vm.Restore()
	assert.Empty(t, vm.Unread())
}

func TestCachePersistsAcrossViewModels(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)

	vm := NewViewModel(2, &fakeUnreadAPI{}, nil, cache)
	vm.Apply(messageEvent("general:7", 1))

	reopened, err := NewCache(dir)
	require.NoError(t, err)
	counts, err := reopened.Load(2)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"general:7": 1}, counts)

	// caches are per user
	counts, err = reopened.Load(3)
	require.NoError(t, err)
	assert.Nil(t, counts)
}
