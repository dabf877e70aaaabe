package policy

import (
	"context"
	"errors"
	"sort"

	"github.com/mander92/syuso-chat/internal/directory"
	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/repositories"
)

var (
	ErrForbidden  = errors.New("forbidden")
	ErrRoomPaused = errors.New("room is paused")
)

// Policy decides read/write/moderate access per room and per role. Every
// write path re-checks at call time; membership and roles can change between
// room-open and send.
type Policy struct {
	dir   directory.Directory
	chats repositories.GeneralChatRepository
}

// New constructs a Policy.
func New(dir directory.Directory, chats repositories.GeneralChatRepository) *Policy {
	return &Policy{dir: dir, chats: chats}
}

// CanRead reports whether the principal may read the room. A missing room
// surfaces as repositories.ErrChatNotFound or directory.ErrServiceNotFound.
func (p *Policy) CanRead(ctx context.Context, pr models.Principal, room models.RoomRef) (bool, error) {
	switch room.Kind {
	case models.RoomService:
		return p.serviceAccess(ctx, pr, room.ID)
	case models.RoomGeneral:
		// Members read regardless of chat type.
		if _, err := p.chats.GetChat(ctx, room.ID); err != nil {
			return false, err
		}
		return p.chats.IsMember(ctx, room.ID, pr.ID)
	}
	return false, nil
}

// CanWrite reports whether the principal may send into the room.
func (p *Policy) CanWrite(ctx context.Context, pr models.Principal, room models.RoomRef) (bool, error) {
	switch room.Kind {
	case models.RoomService:
		return p.serviceAccess(ctx, pr, room.ID)
	case models.RoomGeneral:
		chat, err := p.chats.GetChat(ctx, room.ID)
		if err != nil {
			return false, err
		}
		member, err := p.chats.IsMember(ctx, room.ID, pr.ID)
		if err != nil || !member {
			return false, err
		}
		// Announcement chats are read-only for non-admin members.
		if chat.Type == models.ChatAnnouncement && !pr.Role.AdminLike() {
			return false, nil
		}
		return true, nil
	}
	return false, nil
}

// CanModerate reports whether the principal may pause, clear or delete
// messages in the room. Moderation is admin-only for both kinds.
func (p *Policy) CanModerate(ctx context.Context, pr models.Principal, room models.RoomRef) (bool, error) {
	if !pr.Role.AdminLike() {
		return false, nil
	}
	switch room.Kind {
	case models.RoomService:
		exists, err := p.dir.ServiceExists(ctx, room.ID)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, directory.ErrServiceNotFound
		}
		return true, nil
	case models.RoomGeneral:
		if _, err := p.chats.GetChat(ctx, room.ID); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// ComputeMembership enumerates the room's current members for fan-out and
// unread accounting. Service membership is derived dynamically from the
// directory on every call; general membership is the stored set.
func (p *Policy) ComputeMembership(ctx context.Context, room models.RoomRef) ([]int, error) {
	switch room.Kind {
	case models.RoomService:
		staff, err := p.dir.ServiceStaff(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		clientID, err := p.dir.ServiceClient(ctx, room.ID)
		if err != nil {
			return nil, err
		}
		admins, err := p.dir.AdminIDs(ctx)
		if err != nil {
			return nil, err
		}
		set := make(map[int]struct{}, len(staff)+len(admins)+1)
		for _, id := range staff {
			set[id] = struct{}{}
		}
		set[clientID] = struct{}{}
		for _, id := range admins {
			set[id] = struct{}{}
		}
		ids := make([]int, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		return ids, nil
	case models.RoomGeneral:
		return p.chats.ListMemberIDs(ctx, room.ID)
	}
	return nil, nil
}

func (p *Policy) serviceAccess(ctx context.Context, pr models.Principal, serviceID int) (bool, error) {
	exists, err := p.dir.ServiceExists(ctx, serviceID)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, directory.ErrServiceNotFound
	}
	if pr.Role.AdminLike() {
		return true, nil
	}
	switch pr.Role {
	case models.RoleEmployee:
		staff, err := p.dir.ServiceStaff(ctx, serviceID)
		if err != nil {
			return false, err
		}
		for _, id := range staff {
			if id == pr.ID {
				return true, nil
			}
		}
		return false, nil
	case models.RoleClient:
		clientID, err := p.dir.ServiceClient(ctx, serviceID)
		if err != nil {
			return false, err
		}
		return clientID == pr.ID, nil
	}
	return false, nil
}
