package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mander92/syuso-chat/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidMessage  = errors.New("message needs text or image")
)

// MessageRepository abstracts message persistence for both room kinds.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomKey string, senderID int, text, imagePath *string, replyToID *int64) (models.Message, error)
	ListRoomMessages(ctx context.Context, roomKey string, beforeID int64, limit int) ([]models.MessageWithReply, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	TombstoneMessage(ctx context.Context, messageID int64) error
	ClearRoom(ctx context.Context, roomKey string) error
}

// MessageRepo is a sqlx-backed implementation.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage persists a message. A message with neither text nor image is
// rejected before touching the store.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomKey string, senderID int, text, imagePath *string, replyToID *int64) (models.Message, error) {
	if text == nil && imagePath == nil {
		return models.Message{}, ErrInvalidMessage
	}
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (room_key, sender_id, text, image_path, reply_to_id)
         VALUES ($1, $2, $3, $4, $5)
         RETURNING id, room_key, sender_id, text, image_path, reply_to_id, deleted, created_at`,
		roomKey, senderID, text, imagePath, replyToID).
		Scan(&msg.ID, &msg.RoomKey, &msg.SenderID, &msg.Text, &msg.ImagePath, &msg.ReplyToID, &msg.Deleted, &msg.CreatedAt)
	return msg, err
}

type messageReplyRow struct {
	models.Message
	ReplyID        *int64         `db:"reply_id"`
	ReplySenderID  *int           `db:"reply_sender_id"`
	ReplyText      *string        `db:"reply_text"`
	ReplyImagePath *string        `db:"reply_image_path"`
	ReplyDeleted   *bool          `db:"reply_deleted"`
}

// ListRoomMessages returns messages in commit order, oldest first, with the
// reply target joined in. Tombstoned messages are kept so clients render the
// placeholder in place. beforeID=0 means newest page.
func (r *MessageRepo) ListRoomMessages(ctx context.Context, roomKey string, beforeID int64, limit int) ([]models.MessageWithReply, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT m.id, m.room_key, m.sender_id, m.text, m.image_path, m.reply_to_id, m.deleted, m.created_at,
            r.id AS reply_id, r.sender_id AS reply_sender_id, r.text AS reply_text,
            r.image_path AS reply_image_path, r.deleted AS reply_deleted
        FROM messages m
        LEFT JOIN messages r ON r.id = m.reply_to_id
        WHERE m.room_key=$1 AND ($2 = 0 OR m.id < $2)
        ORDER BY m.id DESC
        LIMIT $3`
	rows, err := r.db.QueryxContext(ctx, query, roomKey, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []models.MessageWithReply
	for rows.Next() {
		var row messageReplyRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		item := models.MessageWithReply{Message: row.Message}
		if row.ReplyID != nil {
			item.Reply = &models.Message{
				ID:        *row.ReplyID,
				RoomKey:   roomKey,
				SenderID:  *row.ReplySenderID,
				Text:      row.ReplyText,
				ImagePath: row.ReplyImagePath,
				Deleted:   row.ReplyDeleted != nil && *row.ReplyDeleted,
			}
		}
		page = append(page, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// reverse to oldest-first for rendering
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// GetMessage retrieves a single message, tombstoned or not.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, room_key, sender_id, text, image_path, reply_to_id, deleted, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// TombstoneMessage clears the content but keeps the row so replies resolve to
// a placeholder. Re-deleting reports not found.
func (r *MessageRepo) TombstoneMessage(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted = TRUE, text = NULL, image_path = NULL WHERE id=$1 AND deleted = FALSE`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ClearRoom purges every message in the room.
func (r *MessageRepo) ClearRoom(ctx context.Context, roomKey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE room_key=$1`, roomKey)
	return err
}
