package models

// Protocol operations sent client-to-server over the websocket connection.
const (
	OpJoin          = "join"
	OpLeave         = "leave"
	OpSend          = "send"
	OpPause         = "pause"
	OpClear         = "clear"
	OpDeleteMessage = "deleteMessage"
)

// Event types pushed server-to-client. Acks use FrameAck so clients can route
// on the "type" field alone.
const (
	EventMessage = "message"
	EventPause   = "pause"
	EventClear   = "clear"
	EventDelete  = "delete"
	FrameAck     = "ack"
)

// Command is a client-to-server protocol call. Seq correlates the ack; calls
// may be answered out of order since each executes as its own task.
type Command struct {
	Seq       int64   `json:"seq"`
	Op        string  `json:"op"`
	RoomKey   string  `json:"room_id"`
	Text      *string `json:"text,omitempty"`
	ImagePath *string `json:"image_path,omitempty"`
	ReplyToID *int64  `json:"reply_to_message_id,omitempty"`
	Paused    *bool   `json:"paused,omitempty"`
	MessageID int64   `json:"message_id,omitempty"`
}

// Ack answers exactly one Command and goes only to the calling session.
type Ack struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq"`
	Op      string `json:"op"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Paused  *bool  `json:"paused,omitempty"`
}

// ChatEvent is broadcast to every session joined to a room. Events only ever
// carry committed state; delete events carry the id alone so already-deleted
// content is not re-leaked.
type ChatEvent struct {
	Type      string       `json:"type"`
	RoomKey   string       `json:"room_id"`
	Message   *MessageView `json:"message,omitempty"`
	Paused    *bool        `json:"paused,omitempty"`
	MessageID int64        `json:"message_id,omitempty"`
}
