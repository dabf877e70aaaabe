package reconcile

import (
	"context"
	"sync"

	"github.com/mander92/syuso-chat/internal/mentions"
)

// MemberAPI fetches a room's current member roster.
type MemberAPI interface {
	Members(ctx context.Context, roomKey string) ([]mentions.Member, error)
}

// Roster caches each room's member list for mention completion. The cache is
// re-fetched on room open, not push-invalidated; membership changes while a
// room stays open are a known staleness window.
type Roster struct {
	api MemberAPI

	mu      sync.Mutex
	members map[string][]mentions.Member
}

// NewRoster builds a Roster.
func NewRoster(api MemberAPI) *Roster {
	return &Roster{api: api, members: map[string][]mentions.Member{}}
}

// Refresh re-fetches the room's member list.
func (r *Roster) Refresh(ctx context.Context, roomKey string) error {
	members, err := r.api.Members(ctx, roomKey)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.members[roomKey] = members
	r.mu.Unlock()
	return nil
}

// Forget drops the cached list, typically on leave.
func (r *Roster) Forget(roomKey string) {
	r.mu.Lock()
	delete(r.members, roomKey)
	r.mu.Unlock()
}

// Candidates completes the @-fragment at the caret against the room's cached
// members. An empty result means no fragment or no cached roster.
func (r *Roster) Candidates(roomKey, text string, caret int) []mentions.Member {
	fragment, _, ok := mentions.Fragment(text, caret)
	if !ok {
		return nil
	}
	r.mu.Lock()
	members := r.members[roomKey]
	r.mu.Unlock()
	return mentions.Candidates(members, fragment)
}
