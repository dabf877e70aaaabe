package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mander92/syuso-chat/internal/directory"
	"github.com/mander92/syuso-chat/internal/mocks"
	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/policy"
)

func setupRoomRouter(handler *RoomHandler, principal models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("principal", principal)
		c.Next()
	})
	r.GET("/rooms/:room/messages", handler.GetRoomMessages)
	r.GET("/rooms/:room/members", handler.GetRoomMembers)
	return r
}

func textRef(s string) *string { return &s }

func TestGetRoomMessagesResolvesSendersAndReplies(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	dir := new(mocks.DirectoryMock)
	chats := new(mocks.GeneralChatRepositoryMock)
	handler := NewRoomHandler(messages, policy.New(dir, chats), dir)
	router := setupRoomRouter(handler, models.Principal{ID: 2, Role: models.RoleEmployee})

	dir.On("ServiceExists", mock.Anything, 10).Return(true, nil)
	dir.On("ServiceStaff", mock.Anything, 10).Return([]int{2}, nil)

	replyID := int64(1)
	messages.On("ListRoomMessages", mock.Anything, "service:10", int64(0), 0).Return([]models.MessageWithReply{
		{Message: models.Message{ID: 1, RoomKey: "service:10", SenderID: 3, Text: textRef("primero")}},
		{
			Message: models.Message{ID: 2, RoomKey: "service:10", SenderID: 2, Text: textRef("respuesta"), ReplyToID: &replyID},
			Reply:   &models.Message{ID: 1, RoomKey: "service:10", SenderID: 3, Text: textRef("primero")},
		},
	}, nil).Once()
	dir.On("UsersByIDs", mock.Anything, mock.Anything).Return([]directory.User{
		{ID: 2, Name: "Eva Vigilante"},
		{ID: 3, Name: "Cliente SA"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/service:10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.MessageView `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Cliente SA", resp.Messages[0].SenderName)
	require.NotNil(t, resp.Messages[1].ReplyTo)
	assert.Equal(t, "primero", resp.Messages[1].ReplyTo.Text)
	assert.Equal(t, "Cliente SA", resp.Messages[1].ReplyTo.SenderName)
	assert.False(t, resp.Messages[1].ReplyTo.Deleted)
}

func TestGetRoomMessagesRendersTombstoneReply(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	dir := new(mocks.DirectoryMock)
	handler := NewRoomHandler(messages, policy.New(dir, new(mocks.GeneralChatRepositoryMock)), dir)
	router := setupRoomRouter(handler, models.Principal{ID: 1, Role: models.RoleAdmin})

	dir.On("ServiceExists", mock.Anything, 10).Return(true, nil)

	replyID := int64(4)
	messages.On("ListRoomMessages", mock.Anything, "service:10", int64(0), 0).Return([]models.MessageWithReply{
		{
			Message: models.Message{ID: 5, RoomKey: "service:10", SenderID: 2, Text: textRef("mira arriba"), ReplyToID: &replyID},
			Reply:   &models.Message{ID: 4, RoomKey: "service:10", SenderID: 3, Deleted: true},
		},
	}, nil).Once()
	dir.On("UsersByIDs", mock.Anything, []int{2}).Return([]directory.User{{ID: 2, Name: "Eva Vigilante"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/service:10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []models.MessageView `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	require.NotNil(t, resp.Messages[0].ReplyTo)
	assert.True(t, resp.Messages[0].ReplyTo.Deleted)
	assert.Empty(t, resp.Messages[0].ReplyTo.Text)
}

func TestGetRoomMessagesForbiddenForOutsiders(t *testing.T) {
	messages := new(mocks.MessageRepositoryMock)
	dir := new(mocks.DirectoryMock)
	handler := NewRoomHandler(messages, policy.New(dir, new(mocks.GeneralChatRepositoryMock)), dir)
	router := setupRoomRouter(handler, models.Principal{ID: 9, Role: models.RoleEmployee})

	dir.On("ServiceExists", mock.Anything, 10).Return(true, nil)
	dir.On("ServiceStaff", mock.Anything, 10).Return([]int{2}, nil)

	req := httptest.NewRequest(http.MethodGet, "/rooms/service:10/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "ListRoomMessages", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetRoomMembers(t *testing.T) {
	dir := new(mocks.DirectoryMock)
	handler := NewRoomHandler(new(mocks.MessageRepositoryMock), policy.New(dir, new(mocks.GeneralChatRepositoryMock)), dir)
	router := setupRoomRouter(handler, models.Principal{ID: 1, Role: models.RoleAdmin})

	dir.On("ServiceExists", mock.Anything, 10).Return(true, nil)
	dir.On("ServiceStaff", mock.Anything, 10).Return([]int{2}, nil)
	dir.On("ServiceClient", mock.Anything, 10).Return(3, nil)
	dir.On("AdminIDs", mock.Anything).Return([]int{1}, nil)
	dir.On("UsersByIDs", mock.Anything, []int{1, 2, 3}).Return([]directory.User{
		{ID: 1, Name: "Ana Admin", Role: models.RoleAdmin},
		{ID: 2, Name: "Eva Vigilante", Role: models.RoleEmployee},
		{ID: 3, Name: "Cliente SA", Role: models.RoleClient},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/service:10/members", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Members []directory.User `json:"members"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Members, 3)
}

func TestInvalidRoomKeyIsBadRequest(t *testing.T) {
	dir := new(mocks.DirectoryMock)
	handler := NewRoomHandler(new(mocks.MessageRepositoryMock), policy.New(dir, new(mocks.GeneralChatRepositoryMock)), dir)
	router := setupRoomRouter(handler, models.Principal{ID: 1, Role: models.RoleAdmin})

	req := httptest.NewRequest(http.MethodGet, "/rooms/nonsense/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
