package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mander92/syuso-chat/internal/ledger"
	"github.com/mander92/syuso-chat/internal/middleware"
	"github.com/mander92/syuso-chat/internal/models"
)

// UnreadHandler exposes the server-side unread ledger: the snapshot clients
// reconcile against on connect, and the reset fired when a room is opened.
type UnreadHandler struct {
	unread ledger.Ledger
}

// NewUnreadHandler builds an UnreadHandler.
func NewUnreadHandler(unread ledger.Ledger) *UnreadHandler {
	return &UnreadHandler{unread: unread}
}

// GetUnread returns every non-zero counter for the caller, keyed by room.
func (h *UnreadHandler) GetUnread(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	counts, err := h.unread.Snapshot(c.Request.Context(), principal.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load unread counts"})
		return
	}
	if counts == nil {
		counts = map[string]int{}
	}

	c.JSON(http.StatusOK, gin.H{"unread": counts})
}

// ResetUnread zeroes the caller's counter for one room. Clients call it when
// the room is opened; resetting an already-zero counter is a no-op.
func (h *UnreadHandler) ResetUnread(c *gin.Context) {
	principal, ok := middleware.PrincipalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}
	ref, err := models.ParseRoomRef(c.Param("room"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room key"})
		return
	}

	if err := h.unread.Reset(c.Request.Context(), principal.ID, ref.Key()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset counter"})
		return
	}

	c.Status(http.StatusNoContent)
}
