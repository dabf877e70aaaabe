package ledger

import "context"

// Ledger is the server-side source of truth for per-user, per-room unread
// counts. It must be queryable whether or not the user is connected, and
// increments must be atomic under concurrent senders.
type Ledger interface {
	// RecordDelivery increments the count for every recipient except the
	// sender.
	RecordDelivery(ctx context.Context, roomKey string, recipientIDs []int, senderID int) error
	// Snapshot returns every non-zero count for the user.
	Snapshot(ctx context.Context, userID int) (map[string]int, error)
	// Reset zeroes one counter, typically when the user opens the room.
	Reset(ctx context.Context, userID int, roomKey string) error
	// ResetRoom zeroes the room's counter for every listed member, used when
	// a room is cleared.
	ResetRoom(ctx context.Context, roomKey string, memberIDs []int) error
}
