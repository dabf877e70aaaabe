package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps unread counts in one hash per user
// (unread:<userID> -> roomKey: count). HINCRBY gives the atomic
// increment-and-read semantics required under concurrent senders, and counts
// accrue while the user is offline.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger constructs a RedisLedger.
func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func userKey(userID int) string {
	return fmt.Sprintf("unread:%d", userID)
}

// RecordDelivery increments each recipient's counter except the sender's, in
// one pipeline.
func (l *RedisLedger) RecordDelivery(ctx context.Context, roomKey string, recipientIDs []int, senderID int) error {
	pipe := l.client.Pipeline()
	for _, id := range recipientIDs {
		if id == senderID {
			continue
		}
		pipe.HIncrBy(ctx, userKey(id), roomKey, 1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Snapshot returns the user's counts across all rooms.
func (l *RedisLedger) Snapshot(ctx context.Context, userID int) (map[string]int, error) {
	fields, err := l.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(fields))
	for roomKey, raw := range fields {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			continue
		}
		counts[roomKey] = n
	}
	return counts, nil
}

// Reset removes the counter field; an absent field already means zero.
func (l *RedisLedger) Reset(ctx context.Context, userID int, roomKey string) error {
	return l.client.HDel(ctx, userKey(userID), roomKey).Err()
}

// ResetRoom removes the room's counter for every member in one pipeline.
func (l *RedisLedger) ResetRoom(ctx context.Context, roomKey string, memberIDs []int) error {
	pipe := l.client.Pipeline()
	for _, id := range memberIDs {
		pipe.HDel(ctx, userKey(id), roomKey)
	}
	_, err := pipe.Exec(ctx)
	return err
}
