package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/mander92/syuso-chat/internal/models"
)

// ErrConnectionClosed is returned by calls issued after the connection died.
var ErrConnectionClosed = errors.New("connection closed")

// ProtocolError is a server-side rejection carried in a negative ack.
type ProtocolError struct {
	Op      string
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Op + " rejected: " + e.Message
}

const eventBuffer = 256

// Connector is the client half of the chat protocol: one persistent
// connection, sequenced commands matched to their acks, and server-pushed
// events surfaced on a channel in arrival order.
type Connector struct {
	conn   *websocket.Conn
	seq    atomic.Int64
	events chan models.ChatEvent
	done   chan struct{}

	mu      sync.Mutex
	pending map[int64]chan models.Ack
	closed  bool
	readErr error
}

// Dial connects and authenticates against the chat endpoint.
func Dial(ctx context.Context, url, token string) (*Connector, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}

	c := &Connector{
		conn:    conn,
		events:  make(chan models.ChatEvent, eventBuffer),
		done:    make(chan struct{}),
		pending: map[int64]chan models.Ack{},
	}
	go c.readLoop()
	return c, nil
}

// Events yields server-pushed room events in the order they arrived. The
// channel closes when the connection dies.
func (c *Connector) Events() <-chan models.ChatEvent {
	return c.events
}

// Join subscribes to a room and returns its pause state for service rooms.
func (c *Connector) Join(ctx context.Context, roomKey string) (paused bool, err error) {
	ack, err := c.call(ctx, models.Command{Op: models.OpJoin, RoomKey: roomKey})
	if err != nil {
		return false, err
	}
	return ack.Paused != nil && *ack.Paused, nil
}

// Leave unsubscribes; the server does not ack leaves.
func (c *Connector) Leave(roomKey string) error {
	return c.write(models.Command{Seq: c.seq.Add(1), Op: models.OpLeave, RoomKey: roomKey})
}

// Send posts a message into the room.
func (c *Connector) Send(ctx context.Context, roomKey string, text, imagePath *string, replyToID *int64) error {
	_, err := c.call(ctx, models.Command{
		Op:        models.OpSend,
		RoomKey:   roomKey,
		Text:      text,
		ImagePath: imagePath,
		ReplyToID: replyToID,
	})
	return err
}

// Pause sets the room's pause state to an absolute value.
func (c *Connector) Pause(ctx context.Context, roomKey string, paused bool) error {
	_, err := c.call(ctx, models.Command{Op: models.OpPause, RoomKey: roomKey, Paused: &paused})
	return err
}

// Clear purges a service room.
func (c *Connector) Clear(ctx context.Context, roomKey string) error {
	_, err := c.call(ctx, models.Command{Op: models.OpClear, RoomKey: roomKey})
	return err
}

// DeleteMessage tombstones one message.
func (c *Connector) DeleteMessage(ctx context.Context, roomKey string, messageID int64) error {
	_, err := c.call(ctx, models.Command{Op: models.OpDeleteMessage, RoomKey: roomKey, MessageID: messageID})
	return err
}

// Close tears the connection down; pending calls fail with
// ErrConnectionClosed.
func (c *Connector) Close() error {
	return c.conn.Close()
}

func (c *Connector) call(ctx context.Context, cmd models.Command) (models.Ack, error) {
	cmd.Seq = c.seq.Add(1)
	reply := make(chan models.Ack, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return models.Ack{}, ErrConnectionClosed
	}
	c.pending[cmd.Seq] = reply
	c.mu.Unlock()

	if err := c.write(cmd); err != nil {
		c.dropPending(cmd.Seq)
		return models.Ack{}, err
	}

	select {
	case ack := <-reply:
		if !ack.OK {
			return ack, &ProtocolError{Op: cmd.Op, Message: ack.Message}
		}
		return ack, nil
	case <-c.done:
		return models.Ack{}, ErrConnectionClosed
	case <-ctx.Done():
		c.dropPending(cmd.Seq)
		return models.Ack{}, ctx.Err()
	}
}

func (c *Connector) write(cmd models.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	return c.conn.WriteJSON(cmd)
}

func (c *Connector) dropPending(seq int64) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func (c *Connector) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.pending = map[int64]chan models.Ack{}
		c.mu.Unlock()
		close(c.done)
		close(c.events)
		c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}

		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		if frame.Type == models.FrameAck {
			var ack models.Ack
			if err := json.Unmarshal(raw, &ack); err != nil {
				continue
			}
			c.mu.Lock()
			reply, ok := c.pending[ack.Seq]
			delete(c.pending, ack.Seq)
			c.mu.Unlock()
			if ok {
				reply <- ack
			}
			continue
		}

		var event models.ChatEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			continue
		}
		select {
		case c.events <- event:
		default:
			// a reader this far behind is broken; drop rather than stall acks
		}
	}
}

// Err reports the terminal read error after the connection closed.
func (c *Connector) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}
