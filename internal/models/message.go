package models

import "time"

// Message represents a chat message in either room kind. Text and ImagePath
// are both nullable but never both absent on a live row; a tombstoned row has
// both cleared and Deleted set so replies can still resolve their target.
type Message struct {
	ID        int64     `db:"id" json:"id"`
	RoomKey   string    `db:"room_key" json:"room_key"`
	SenderID  int       `db:"sender_id" json:"sender_id"`
	Text      *string   `db:"text" json:"text,omitempty"`
	ImagePath *string   `db:"image_path" json:"image_path,omitempty"`
	ReplyToID *int64    `db:"reply_to_id" json:"reply_to_message_id,omitempty"`
	Deleted   bool      `db:"deleted" json:"deleted"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReplySnapshot is the rendered preview of a replied-to message, resolved at
// read time. A deleted or missing target resolves to Deleted=true, never an
// error.
type ReplySnapshot struct {
	MessageID  int64  `json:"message_id"`
	SenderName string `json:"sender_name,omitempty"`
	Text       string `json:"text,omitempty"`
	HasImage   bool   `json:"has_image,omitempty"`
	Deleted    bool   `json:"deleted"`
}

// MessageView is the wire shape for messages pushed to clients and returned
// by the history endpoint.
type MessageView struct {
	Message
	SenderName string         `json:"sender_name,omitempty"`
	ReplyTo    *ReplySnapshot `json:"reply_to,omitempty"`
}

// NewReplySnapshot builds a snapshot from a fetched reply target. A nil or
// tombstoned target yields the deletion placeholder.
func NewReplySnapshot(replyToID int64, target *Message, senderName string) *ReplySnapshot {
	if target == nil || target.Deleted {
		return &ReplySnapshot{MessageID: replyToID, Deleted: true}
	}
	snap := &ReplySnapshot{MessageID: target.ID, SenderName: senderName, HasImage: target.ImagePath != nil}
	if target.Text != nil {
		snap.Text = *target.Text
	}
	return snap
}

// MessageWithReply pairs a message with its reply target as fetched in one
// history query. Reply is nil when the message replies to nothing or the
// target row is gone.
type MessageWithReply struct {
	Message
	Reply *Message
}
