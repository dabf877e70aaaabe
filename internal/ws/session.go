package ws

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/observability"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Session is one connected client's handle to the messaging server, valid
// for one connection lifetime. A session may be joined to many rooms at once.
type Session struct {
	ID        string
	Principal models.Principal

	conn   *websocket.Conn
	server *Server
	send   chan []byte

	mu     sync.Mutex
	rooms  map[string]bool
	closed bool

	connectedAt time.Time
}

// newSessionID mints the opaque per-connection identifier used in logs and
// audit records.
func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("sess-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func newSession(conn *websocket.Conn, principal models.Principal, server *Server) *Session {
	return &Session{
		ID:          newSessionID(),
		Principal:   principal,
		conn:        conn,
		server:      server,
		send:        make(chan []byte, sendBuffer),
		rooms:       make(map[string]bool),
		connectedAt: time.Now(),
	}
}

func (s *Session) run() {
	go s.writePump()
	go s.readPump()
}

// readPump parses protocol commands and dispatches each as its own task so a
// slow operation never blocks unrelated calls on the same connection.
func (s *Session) readPump() {
	defer func() {
		s.server.disconnect(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error: session=%s err=%v", s.ID, err)
				observability.IncWSEvent("session", "ws_error")
			}
			return
		}

		var cmd models.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Printf("malformed command: session=%s err=%v", s.ID, err)
			continue
		}
		go s.server.dispatch(s, cmd)
	}
}

// writePump owns all writes to the connection and keeps it alive with pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Session) enqueueEvent(event models.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("encode event: session=%s err=%v", s.ID, err)
		return
	}
	s.enqueue(payload)
}

func (s *Session) enqueueAck(ack models.Ack) {
	ack.Type = models.FrameAck
	payload, err := json.Marshal(ack)
	if err != nil {
		log.Printf("encode ack: session=%s err=%v", s.ID, err)
		return
	}
	s.enqueue(payload)
}

// enqueue never blocks a broadcast; a session that cannot drain its buffer
// gets its connection closed and is cleaned up by the read pump.
func (s *Session) enqueue(payload []byte) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.send <- payload:
		s.mu.Unlock()
	default:
		s.closed = true
		s.mu.Unlock()
		log.Printf("session send buffer full, dropping connection: session=%s", s.ID)
		s.conn.Close()
	}
}

// trackJoin records the room membership on the session. It refuses once the
// session is closed, so a join that lost a race against the disconnect cannot
// re-register a dead session.
func (s *Session) trackJoin(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.rooms[key] = true
	return true
}

// detach marks the session closed and returns the rooms it was joined to.
// Runs once, when the connection goes away.
func (s *Session) detach() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	keys := make([]string, 0, len(s.rooms))
	for key := range s.rooms {
		keys = append(keys, key)
	}
	return keys
}

func (s *Session) trackLeave(key string) {
	s.mu.Lock()
	delete(s.rooms, key)
	s.mu.Unlock()
}

func (s *Session) joinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.rooms))
	for key := range s.rooms {
		keys = append(keys, key)
	}
	return keys
}
