package ws

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mander92/syuso-chat/internal/directory"
	"github.com/mander92/syuso-chat/internal/ledger"
	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/observability"
	"github.com/mander92/syuso-chat/internal/policy"
	"github.com/mander92/syuso-chat/internal/repositories"
	"github.com/mander92/syuso-chat/internal/telemetry"
)

const commandTimeout = 10 * time.Second

// Server implements the chat session protocol over the hub: join, leave,
// send, pause, clear and deleteMessage, plus the server-pushed events. Errors
// are answered on the calling session only; broadcasts carry only committed
// state.
type Server struct {
	hub        *Hub
	policy     *policy.Policy
	messages   repositories.MessageRepository
	moderation repositories.ModerationRepository
	unread     ledger.Ledger
	dir        directory.Directory
	audit      *telemetry.AuditEmitter
}

// NewServer constructs the protocol server.
func NewServer(hub *Hub, pol *policy.Policy, messages repositories.MessageRepository, moderation repositories.ModerationRepository, unread ledger.Ledger, dir directory.Directory, audit *telemetry.AuditEmitter) *Server {
	return &Server{
		hub:        hub,
		policy:     pol,
		messages:   messages,
		moderation: moderation,
		unread:     unread,
		dir:        dir,
		audit:      audit,
	}
}

func (srv *Server) dispatch(s *Session, cmd models.Command) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	ref, err := models.ParseRoomRef(cmd.RoomKey)
	if err != nil {
		s.enqueueAck(models.Ack{Seq: cmd.Seq, Op: cmd.Op, Message: "room not found"})
		return
	}

	switch cmd.Op {
	case models.OpJoin:
		srv.handleJoin(ctx, s, cmd, ref)
	case models.OpLeave:
		srv.hub.Leave(ref.Key(), s)
	case models.OpSend:
		srv.handleSend(ctx, s, cmd, ref)
	case models.OpPause:
		srv.handlePause(ctx, s, cmd, ref)
	case models.OpClear:
		srv.handleClear(ctx, s, cmd, ref)
	case models.OpDeleteMessage:
		srv.handleDelete(ctx, s, cmd, ref)
	default:
		s.enqueueAck(models.Ack{Seq: cmd.Seq, Op: cmd.Op, Message: "unknown operation"})
	}
}

func (srv *Server) handleJoin(ctx context.Context, s *Session, cmd models.Command, ref models.RoomRef) {
	ok, err := srv.policy.CanRead(ctx, s.Principal, ref)
	if err != nil || !ok {
		srv.fail(s, cmd, firstErr(err, policy.ErrForbidden))
		return
	}

	ack := models.Ack{Seq: cmd.Seq, Op: cmd.Op, OK: true}
	if ref.Kind == models.RoomService {
		paused, err := srv.roomPaused(ctx, ref)
		if err != nil {
			srv.fail(s, cmd, err)
			return
		}
		srv.hub.Join(ref, s, paused)
		ack.Paused = &paused
	} else {
		srv.hub.Join(ref, s, false)
	}
	observability.IncWSEvent(string(ref.Kind), "join")
	s.enqueueAck(ack)
}

func (srv *Server) handleSend(ctx context.Context, s *Session, cmd models.Command, ref models.RoomRef) {
	key := ref.Key()
	if !srv.hub.Joined(key, s) {
		srv.fail(s, cmd, policy.ErrForbidden)
		return
	}
	ok, err := srv.policy.CanWrite(ctx, s.Principal, ref)
	if err != nil || !ok {
		srv.fail(s, cmd, firstErr(err, policy.ErrForbidden))
		return
	}
	if cmd.Text == nil && cmd.ImagePath == nil {
		srv.fail(s, cmd, repositories.ErrInvalidMessage)
		return
	}

	err = srv.hub.Commit(ctx, key, nil, func(state *RoomState) ([]models.ChatEvent, error) {
		if ref.Kind == models.RoomService && state.Paused {
			return nil, policy.ErrRoomPaused
		}

		msg, err := srv.messages.CreateMessage(ctx, key, s.Principal.ID, cmd.Text, cmd.ImagePath, cmd.ReplyToID)
		if err != nil {
			return nil, err
		}

		members, err := srv.policy.ComputeMembership(ctx, ref)
		if err != nil {
			// The message is committed; losing increments is worse than a
			// noisy log, so broadcast anyway.
			log.Printf("membership lookup failed after commit: room=%s err=%v", key, err)
		} else if err := srv.unread.RecordDelivery(ctx, key, members, s.Principal.ID); err != nil {
			log.Printf("unread increment failed: room=%s err=%v", key, err)
		} else {
			observability.AddUnreadIncrements(len(members) - 1)
		}

		view := models.MessageView{Message: msg, SenderName: s.Principal.Name}
		if msg.ReplyToID != nil {
			view.ReplyTo = srv.replySnapshot(ctx, *msg.ReplyToID)
		}
		return []models.ChatEvent{{Type: models.EventMessage, RoomKey: key, Message: &view}}, nil
	})
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	observability.IncWSEvent(string(ref.Kind), "send")
	s.enqueueAck(models.Ack{Seq: cmd.Seq, Op: cmd.Op, OK: true})
}

func (srv *Server) handlePause(ctx context.Context, s *Session, cmd models.Command, ref models.RoomRef) {
	if ref.Kind != models.RoomService || cmd.Paused == nil {
		srv.fail(s, cmd, policy.ErrForbidden)
		return
	}
	ok, err := srv.policy.CanModerate(ctx, s.Principal, ref)
	if err != nil || !ok {
		srv.fail(s, cmd, firstErr(err, policy.ErrForbidden))
		return
	}

	key := ref.Key()
	paused := *cmd.Paused
	seed, err := srv.roomPaused(ctx, ref)
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	err = srv.hub.CommitDetached(ctx, ref, seed, func(state *RoomState) ([]models.ChatEvent, error) {
		if err := srv.moderation.SetPaused(ctx, key, paused); err != nil {
			return nil, err
		}
		state.Paused = paused
		// Broadcast the new absolute value, never a delta, so concurrent
		// togglers converge on the last committed value.
		return []models.ChatEvent{{Type: models.EventPause, RoomKey: key, Paused: &paused}}, nil
	})
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	srv.emitAudit(ctx, s, "INFO", "room pause set", key)
	s.enqueueAck(models.Ack{Seq: cmd.Seq, Op: cmd.Op, OK: true, Paused: &paused})
}

func (srv *Server) handleClear(ctx context.Context, s *Session, cmd models.Command, ref models.RoomRef) {
	if ref.Kind != models.RoomService {
		// general chats persist; only their membership changes
		srv.fail(s, cmd, policy.ErrForbidden)
		return
	}
	ok, err := srv.policy.CanModerate(ctx, s.Principal, ref)
	if err != nil || !ok {
		srv.fail(s, cmd, firstErr(err, policy.ErrForbidden))
		return
	}

	key := ref.Key()
	seed, err := srv.roomPaused(ctx, ref)
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	err = srv.hub.CommitDetached(ctx, ref, seed, func(state *RoomState) ([]models.ChatEvent, error) {
		members, err := srv.policy.ComputeMembership(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := srv.messages.ClearRoom(ctx, key); err != nil {
			return nil, err
		}
		if err := srv.moderation.ClearState(ctx, key); err != nil {
			return nil, err
		}
		if err := srv.unread.ResetRoom(ctx, key, members); err != nil {
			log.Printf("unread reset failed on clear: room=%s err=%v", key, err)
		}
		state.Paused = false
		return []models.ChatEvent{{Type: models.EventClear, RoomKey: key}}, nil
	})
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	srv.emitAudit(ctx, s, "INFO", "room cleared", key)
	s.enqueueAck(models.Ack{Seq: cmd.Seq, Op: cmd.Op, OK: true})
}

func (srv *Server) handleDelete(ctx context.Context, s *Session, cmd models.Command, ref models.RoomRef) {
	ok, err := srv.policy.CanModerate(ctx, s.Principal, ref)
	if err != nil || !ok {
		srv.fail(s, cmd, firstErr(err, policy.ErrForbidden))
		return
	}

	key := ref.Key()
	msg, err := srv.messages.GetMessage(ctx, cmd.MessageID)
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	if msg.RoomKey != key || msg.Deleted {
		srv.fail(s, cmd, repositories.ErrMessageNotFound)
		return
	}

	seed, err := srv.roomPaused(ctx, ref)
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	err = srv.hub.CommitDetached(ctx, ref, seed, func(state *RoomState) ([]models.ChatEvent, error) {
		if err := srv.messages.TombstoneMessage(ctx, cmd.MessageID); err != nil {
			return nil, err
		}
		// id only: deleted content must not be re-leaked to clients that
		// already rendered it.
		return []models.ChatEvent{{Type: models.EventDelete, RoomKey: key, MessageID: cmd.MessageID}}, nil
	})
	if err != nil {
		srv.fail(s, cmd, err)
		return
	}
	srv.emitAudit(ctx, s, "INFO", "message deleted", key)
	s.enqueueAck(models.Ack{Seq: cmd.Seq, Op: cmd.Op, OK: true})
}

func (srv *Server) disconnect(s *Session) {
	srv.hub.Disconnect(s)
	observability.DecWSActive("session")
	observability.IncWSEvent("session", "ws_disconnect")
}

// roomPaused resolves the room's effective pause state: the active room's
// in-memory value when there is one, the store otherwise. General chats carry
// no pause state.
func (srv *Server) roomPaused(ctx context.Context, ref models.RoomRef) (bool, error) {
	if ref.Kind != models.RoomService {
		return false, nil
	}
	if paused, ok := srv.hub.Paused(ref.Key()); ok {
		return paused, nil
	}
	return srv.moderation.GetPaused(ctx, ref.Key())
}

// replySnapshot resolves the weak reply reference at read time. A deleted or
// missing target renders as a placeholder, never an error.
func (srv *Server) replySnapshot(ctx context.Context, replyToID int64) *models.ReplySnapshot {
	target, err := srv.messages.GetMessage(ctx, replyToID)
	if err != nil {
		return models.NewReplySnapshot(replyToID, nil, "")
	}
	senderName := ""
	if !target.Deleted {
		if sender, err := srv.dir.User(ctx, target.SenderID); err == nil {
			senderName = sender.Name
		}
	}
	return models.NewReplySnapshot(replyToID, &target, senderName)
}

func (srv *Server) fail(s *Session, cmd models.Command, err error) {
	s.enqueueAck(models.Ack{Seq: cmd.Seq, Op: cmd.Op, Message: ackMessage(err)})
}

func (srv *Server) emitAudit(ctx context.Context, s *Session, level, text, roomKey string) {
	if srv.audit == nil {
		return
	}
	userID := int64(s.Principal.ID)
	srv.audit.Emit(ctx, level, text+" room="+roomKey, s.ID, &userID)
}

// ackMessage maps internal errors onto the protocol's error taxonomy.
func ackMessage(err error) string {
	switch {
	case errors.Is(err, policy.ErrRoomPaused):
		return "forbidden: room is paused"
	case errors.Is(err, policy.ErrForbidden):
		return "forbidden"
	case errors.Is(err, repositories.ErrInvalidMessage):
		return "invalid message: text or image required"
	case errors.Is(err, repositories.ErrMessageNotFound):
		return "message not found"
	case errors.Is(err, repositories.ErrChatNotFound),
		errors.Is(err, directory.ErrServiceNotFound),
		errors.Is(err, ErrRoomNotActive):
		return "room not found"
	default:
		return "temporarily unavailable"
	}
}

func firstErr(err error, fallback error) error {
	if err != nil {
		return err
	}
	return fallback
}
