package ledger

import (
	"context"
	"sync"
)

// MemoryLedger is a process-local Ledger used in tests and in dev runs where
// no Redis address is configured. Counts do not survive restarts.
type MemoryLedger struct {
	mu     sync.Mutex
	counts map[int]map[string]int
}

// NewMemoryLedger constructs an empty MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{counts: make(map[int]map[string]int)}
}

// RecordDelivery increments each recipient's counter except the sender's.
func (l *MemoryLedger) RecordDelivery(ctx context.Context, roomKey string, recipientIDs []int, senderID int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range recipientIDs {
		if id == senderID {
			continue
		}
		rooms, ok := l.counts[id]
		if !ok {
			rooms = make(map[string]int)
			l.counts[id] = rooms
		}
		rooms[roomKey]++
	}
	return nil
}

// Snapshot returns a copy of the user's counts.
func (l *MemoryLedger) Snapshot(ctx context.Context, userID int) (map[string]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.counts[userID]))
	for roomKey, n := range l.counts[userID] {
		if n > 0 {
			out[roomKey] = n
		}
	}
	return out, nil
}

// Reset zeroes one counter.
func (l *MemoryLedger) Reset(ctx context.Context, userID int, roomKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rooms, ok := l.counts[userID]; ok {
		delete(rooms, roomKey)
	}
	return nil
}

// ResetRoom zeroes the room's counter for every listed member.
func (l *MemoryLedger) ResetRoom(ctx context.Context, roomKey string, memberIDs []int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range memberIDs {
		if rooms, ok := l.counts[id]; ok {
			delete(rooms, roomKey)
		}
	}
	return nil
}
