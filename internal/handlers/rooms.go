package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mander92/syuso-chat/internal/directory"
	"github.com/mander92/syuso-chat/internal/middleware"
	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/policy"
	"github.com/mander92/syuso-chat/internal/repositories"
)

// RoomHandler serves room history and membership over HTTP. Live traffic goes
// over the websocket; these endpoints back the initial render and pagination.
type RoomHandler struct {
	messages repositories.MessageRepository
	policy   *policy.Policy
	dir      directory.Directory
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(messages repositories.MessageRepository, pol *policy.Policy, dir directory.Directory) *RoomHandler {
	return &RoomHandler{messages: messages, policy: pol, dir: dir}
}

// GetRoomMessages returns a page of room history, oldest first. Deleted
// messages come back as tombstones so the client renders them in place.
func (h *RoomHandler) GetRoomMessages(c *gin.Context) {
	principal, ref, ok := roomRequest(c)
	if !ok {
		return
	}

	allowed, err := h.policy.CanRead(c.Request.Context(), principal, ref)
	if err != nil {
		roomError(c, err)
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	beforeID, _ := strconv.ParseInt(c.Query("before_id"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, err := h.messages.ListRoomMessages(c.Request.Context(), ref.Key(), beforeID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	senderIDSet := map[int]struct{}{}
	for _, m := range msgs {
		senderIDSet[m.SenderID] = struct{}{}
		if m.Reply != nil && !m.Reply.Deleted {
			senderIDSet[m.Reply.SenderID] = struct{}{}
		}
	}
	senderIDs := make([]int, 0, len(senderIDSet))
	for id := range senderIDSet {
		senderIDs = append(senderIDs, id)
	}

	users, err := h.dir.UsersByIDs(c.Request.Context(), senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load senders"})
		return
	}
	nameByID := map[int]string{}
	for _, u := range users {
		nameByID[u.ID] = u.Name
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := models.MessageView{Message: m.Message, SenderName: nameByID[m.SenderID]}
		if m.ReplyToID != nil {
			replySender := ""
			if m.Reply != nil {
				replySender = nameByID[m.Reply.SenderID]
			}
			view.ReplyTo = models.NewReplySnapshot(*m.ReplyToID, m.Reply, replySender)
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// GetRoomMembers returns the room's current member roster with names, used by
// the mention picker and the member list UI.
func (h *RoomHandler) GetRoomMembers(c *gin.Context) {
	principal, ref, ok := roomRequest(c)
	if !ok {
		return
	}

	allowed, err := h.policy.CanRead(c.Request.Context(), principal, ref)
	if err != nil {
		roomError(c, err)
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	memberIDs, err := h.policy.ComputeMembership(c.Request.Context(), ref)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	users, err := h.dir.UsersByIDs(c.Request.Context(), memberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": users})
}

func roomRequest(c *gin.Context) (models.Principal, models.RoomRef, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return models.Principal{}, models.RoomRef{}, false
	}
	ref, err := models.ParseRoomRef(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room key"})
		return models.Principal{}, models.RoomRef{}, false
	}
	return principal, ref, true
}

func roomError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrChatNotFound) || errors.Is(err, directory.ErrServiceNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check access"})
}
