package models

import "time"

// ChatType classifies a general chat. Announcement chats are read-only for
// non-admin members.
type ChatType string

const (
	ChatStandard     ChatType = "standard"
	ChatAnnouncement ChatType = "announcement"
)

// Valid reports whether the type is one of the known values.
func (t ChatType) Valid() bool {
	return t == ChatStandard || t == ChatAnnouncement
}

// GeneralChat is an organization-wide chat with an explicit member set.
// General chats are never deleted; only their membership changes.
type GeneralChat struct {
	ID        int       `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Type      ChatType  `db:"type" json:"type"`
	CreatedBy int       `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatMember is a stored membership row for a general chat.
type ChatMember struct {
	ChatID     int       `db:"chat_id" json:"chat_id"`
	UserID     int       `db:"user_id" json:"user_id"`
	RoleAtJoin Role      `db:"role_at_join" json:"role_at_join"`
	JoinedAt   time.Time `db:"joined_at" json:"joined_at"`
}
