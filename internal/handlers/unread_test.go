package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mander92/syuso-chat/internal/ledger"
	"github.com/mander92/syuso-chat/internal/models"
)

func setupUnreadRouter(handler *UnreadHandler, principal models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("principal", principal)
		c.Next()
	})
	r.GET("/unread", handler.GetUnread)
	r.POST("/unread/:room/reset", handler.ResetUnread)
	return r
}

func TestGetUnreadSnapshot(t *testing.T) {
	unread := ledger.NewMemoryLedger()
	require.NoError(t, unread.RecordDelivery(context.Background(), "service:10", []int{1, 2}, 1))
	handler := NewUnreadHandler(unread)
	router := setupUnreadRouter(handler, models.Principal{ID: 2, Role: models.RoleEmployee})

	req := httptest.NewRequest(http.MethodGet, "/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Unread map[string]int `json:"unread"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, map[string]int{"service:10": 1}, resp.Unread)
}

func TestGetUnreadEmptyIsObjectNotNull(t *testing.T) {
	handler := NewUnreadHandler(ledger.NewMemoryLedger())
	router := setupUnreadRouter(handler, models.Principal{ID: 2, Role: models.RoleEmployee})

	req := httptest.NewRequest(http.MethodGet, "/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"unread":{}}`, rec.Body.String())
}

func TestResetUnread(t *testing.T) {
	unread := ledger.NewMemoryLedger()
	require.NoError(t, unread.RecordDelivery(context.Background(), "general:7", []int{1, 2}, 1))
	handler := NewUnreadHandler(unread)
	router := setupUnreadRouter(handler, models.Principal{ID: 2, Role: models.RoleEmployee})

	req := httptest.NewRequest(http.MethodPost, "/unread/general:7/reset", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	counts, err := unread.Snapshot(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestResetUnreadInvalidRoom(t *testing.T) {
	handler := NewUnreadHandler(ledger.NewMemoryLedger())
	router := setupUnreadRouter(handler, models.Principal{ID: 2, Role: models.RoleEmployee})

	req := httptest.NewRequest(http.MethodPost, "/unread/whatever/reset", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
