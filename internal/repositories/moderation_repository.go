package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ModerationRepository persists per-room pause state. Only service chats
// carry moderation state; an absent row means not paused.
type ModerationRepository interface {
	GetPaused(ctx context.Context, roomKey string) (bool, error)
	SetPaused(ctx context.Context, roomKey string, paused bool) error
	ClearState(ctx context.Context, roomKey string) error
}

// ModerationRepo is a sqlx implementation of ModerationRepository.
type ModerationRepo struct {
	db *sqlx.DB
}

// NewModerationRepo constructs a ModerationRepo.
func NewModerationRepo(db *sqlx.DB) *ModerationRepo {
	return &ModerationRepo{db: db}
}

// GetPaused reports the stored pause flag, false when no row exists.
func (r *ModerationRepo) GetPaused(ctx context.Context, roomKey string) (bool, error) {
	var paused bool
	err := r.db.GetContext(ctx, &paused, `SELECT paused FROM room_moderation WHERE room_key=$1`, roomKey)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return paused, err
}

// SetPaused upserts the absolute pause value. The last committed value wins;
// concurrent togglers converge through the broadcast of this value.
func (r *ModerationRepo) SetPaused(ctx context.Context, roomKey string, paused bool) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO room_moderation (room_key, paused) VALUES ($1, $2)
         ON CONFLICT (room_key) DO UPDATE SET paused = EXCLUDED.paused`,
		roomKey, paused)
	return err
}

// ClearState removes the moderation row as part of a room clear.
func (r *ModerationRepo) ClearState(ctx context.Context, roomKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM room_moderation WHERE room_key=$1`, roomKey)
	return err
}
