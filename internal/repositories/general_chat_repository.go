package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/mander92/syuso-chat/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// GeneralChatRepository abstracts general chats and their stored member sets.
type GeneralChatRepository interface {
	CreateChat(ctx context.Context, name string, chatType models.ChatType, createdBy int, memberIDs []int) (models.GeneralChat, error)
	GetChat(ctx context.Context, chatID int) (models.GeneralChat, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.GeneralChat, error)
	IsMember(ctx context.Context, chatID int, userID int) (bool, error)
	ListMemberIDs(ctx context.Context, chatID int) ([]int, error)
	AddMembers(ctx context.Context, chatID int, userIDs []int) error
	RemoveMember(ctx context.Context, chatID int, userID int) error
}

// GeneralChatRepo is a sqlx implementation of GeneralChatRepository.
type GeneralChatRepo struct {
	db *sqlx.DB
}

// NewGeneralChatRepo constructs a GeneralChatRepo.
func NewGeneralChatRepo(db *sqlx.DB) *GeneralChatRepo {
	return &GeneralChatRepo{db: db}
}

// CreateChat creates the chat and its initial member set atomically. The
// creator is always a member.
func (r *GeneralChatRepo) CreateChat(ctx context.Context, name string, chatType models.ChatType, createdBy int, memberIDs []int) (models.GeneralChat, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.GeneralChat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat models.GeneralChat
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO general_chats (name, type, created_by) VALUES ($1, $2, $3)
         RETURNING id, name, type, created_by, created_at`,
		name, chatType, createdBy).
		Scan(&chat.ID, &chat.Name, &chat.Type, &chat.CreatedBy, &chat.CreatedAt); err != nil {
		return models.GeneralChat{}, err
	}

	memberSet := map[int]struct{}{createdBy: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]int, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO general_chat_members (chat_id, user_id) VALUES ($1, $2)`, chat.ID, id); err != nil {
			return models.GeneralChat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.GeneralChat{}, err
	}
	return chat, nil
}

// GetChat fetches a single chat.
func (r *GeneralChatRepo) GetChat(ctx context.Context, chatID int) (models.GeneralChat, error) {
	var chat models.GeneralChat
	err := r.db.GetContext(ctx, &chat, `SELECT id, name, type, created_by, created_at FROM general_chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GeneralChat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChatsForUser returns general chats that include the user.
func (r *GeneralChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.GeneralChat, error) {
	var chats []models.GeneralChat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT c.id, c.name, c.type, c.created_by, c.created_at
         FROM general_chats c
         INNER JOIN general_chat_members m ON m.chat_id = c.id
         WHERE m.user_id=$1 ORDER BY c.created_at DESC`, userID)
	return chats, err
}

// IsMember checks stored membership.
func (r *GeneralChatRepo) IsMember(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM general_chat_members WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// ListMemberIDs enumerates the stored member set.
func (r *GeneralChatRepo) ListMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM general_chat_members WHERE chat_id=$1 ORDER BY user_id`, chatID)
	return ids, err
}

// AddMembers inserts members, ignoring ones already present.
func (r *GeneralChatRepo) AddMembers(ctx context.Context, chatID int, userIDs []int) error {
	for _, id := range userIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO general_chat_members (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			chatID, id); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMember deletes one membership row; removing a non-member is a no-op.
func (r *GeneralChatRepo) RemoveMember(ctx context.Context, chatID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM general_chat_members WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	return err
}
