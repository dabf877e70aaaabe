package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mander92/syuso-chat/internal/directory"
	"github.com/mander92/syuso-chat/internal/middleware"
	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/repositories"
	"github.com/mander92/syuso-chat/internal/telemetry"
)

// GeneralChatHandler manages general chat lifecycle and membership. Creation
// and membership edits are admin-only; the chats themselves are never deleted.
type GeneralChatHandler struct {
	chats repositories.GeneralChatRepository
	dir   directory.Directory
	audit *telemetry.AuditEmitter
}

// NewGeneralChatHandler builds a GeneralChatHandler.
func NewGeneralChatHandler(chats repositories.GeneralChatRepository, dir directory.Directory, audit *telemetry.AuditEmitter) *GeneralChatHandler {
	return &GeneralChatHandler{chats: chats, dir: dir, audit: audit}
}

// CreateChat creates a general chat with an explicit member set. The creator
// is always included.
func (h *GeneralChatHandler) CreateChat(c *gin.Context) {
	principal, ok := adminPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		Name      string `json:"name" binding:"required"`
		Type      string `json:"type" binding:"required"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	chatType := models.ChatType(req.Type)
	if !chatType.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type must be standard or announcement"})
		return
	}

	users, err := h.dir.UsersByIDs(c.Request.Context(), req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate members"})
		return
	}
	if len(users) != len(dedupe(req.MemberIDs)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown member id"})
		return
	}

	chat, err := h.chats.CreateChat(c.Request.Context(), req.Name, chatType, principal.ID, req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	h.emitAudit(c, "general chat created: "+chat.Name)
	c.JSON(http.StatusCreated, chat)
}

// ListChats returns the general chats the caller belongs to.
func (h *GeneralChatHandler) ListChats(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	chats, err := h.chats.ListChatsForUser(c.Request.Context(), principal.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// AddMembers adds users to an existing chat; already-present members are
// ignored.
func (h *GeneralChatHandler) AddMembers(c *gin.Context) {
	if _, ok := adminPrincipal(c); !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	var req struct {
		MemberIDs []int `json:"member_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.chats.GetChat(c.Request.Context(), chatID); err != nil {
		chatError(c, err)
		return
	}

	users, err := h.dir.UsersByIDs(c.Request.Context(), req.MemberIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate members"})
		return
	}
	if len(users) != len(dedupe(req.MemberIDs)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown member id"})
		return
	}

	if err := h.chats.AddMembers(c.Request.Context(), chatID, req.MemberIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not add members"})
		return
	}

	h.emitAudit(c, "general chat members added: chat="+strconv.Itoa(chatID))
	c.Status(http.StatusNoContent)
}

// RemoveMember removes one user from the chat. The user's history stays; they
// simply lose access. Removing a non-member is a no-op.
func (h *GeneralChatHandler) RemoveMember(c *gin.Context) {
	if _, ok := adminPrincipal(c); !ok {
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if _, err := h.chats.GetChat(c.Request.Context(), chatID); err != nil {
		chatError(c, err)
		return
	}

	if err := h.chats.RemoveMember(c.Request.Context(), chatID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not remove member"})
		return
	}

	h.emitAudit(c, "general chat member removed: chat="+strconv.Itoa(chatID)+" user="+strconv.Itoa(userID))
	c.Status(http.StatusNoContent)
}

// GetMembers lists the chat's stored member set with names.
func (h *GeneralChatHandler) GetMembers(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	chatID, ok := chatIDParam(c)
	if !ok {
		return
	}

	if _, err := h.chats.GetChat(c.Request.Context(), chatID); err != nil {
		chatError(c, err)
		return
	}

	member, err := h.chats.IsMember(c.Request.Context(), chatID, principal.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member && !principal.Role.AdminLike() {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return
	}

	memberIDs, err := h.chats.ListMemberIDs(c.Request.Context(), chatID)
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

func (h *GeneralChatHandler) emitAudit(c *gin.Context, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), userIDFromContext(c))
}

func adminPrincipal(c *gin.Context) (models.Principal, bool) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return models.Principal{}, false
	}
	if !principal.Role.AdminLike() {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return models.Principal{}, false
	}
	return principal, true
}

func chatIDParam(c *gin.Context) (int, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return 0, false
	}
	return chatID, true
}

func chatError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
}

func dedupe(ids []int) []int {
	set := map[int]struct{}{}
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			set[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
