package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/mander92/syuso-chat/internal/directory"
	"github.com/mander92/syuso-chat/internal/ledger"
	"github.com/mander92/syuso-chat/internal/models"
	"github.com/mander92/syuso-chat/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomKey string, senderID int, text, imagePath *string, replyToID *int64) (models.Message, error) {
	args := m.Called(ctx, roomKey, senderID, text, imagePath, replyToID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListRoomMessages(ctx context.Context, roomKey string, beforeID int64, limit int) ([]models.MessageWithReply, error) {
	args := m.Called(ctx, roomKey, beforeID, limit)
	var msgs []models.MessageWithReply
	if val := args.Get(0); val != nil {
		msgs = val.([]models.MessageWithReply)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) TombstoneMessage(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ClearRoom(ctx context.Context, roomKey string) error {
	args := m.Called(ctx, roomKey)
	return args.Error(0)
}

type GeneralChatRepositoryMock struct {
	mock.Mock
}

func (m *GeneralChatRepositoryMock) CreateChat(ctx context.Context, name string, chatType models.ChatType, createdBy int, memberIDs []int) (models.GeneralChat, error) {
	args := m.Called(ctx, name, chatType, createdBy, memberIDs)
	var chat models.GeneralChat
	if val := args.Get(0); val != nil {
		chat = val.(models.GeneralChat)
	}
	return chat, args.Error(1)
}

func (m *GeneralChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.GeneralChat, error) {
	args := m.Called(ctx, chatID)
	var chat models.GeneralChat
	if val := args.Get(0); val != nil {
		chat = val.(models.GeneralChat)
	}
	return chat, args.Error(1)
}

func (m *GeneralChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int) ([]models.GeneralChat, error) {
	args := m.Called(ctx, userID)
	var chats []models.GeneralChat
	if val := args.Get(0); val != nil {
		chats = val.([]models.GeneralChat)
	}
	return chats, args.Error(1)
}

func (m *GeneralChatRepositoryMock) IsMember(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GeneralChatRepositoryMock) ListMemberIDs(ctx context.Context, chatID int) ([]int, error) {
	args := m.Called(ctx, chatID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *GeneralChatRepositoryMock) AddMembers(ctx context.Context, chatID int, userIDs []int) error {
	args := m.Called(ctx, chatID, userIDs)
	return args.Error(0)
}

func (m *GeneralChatRepositoryMock) RemoveMember(ctx context.Context, chatID int, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

type ModerationRepositoryMock struct {
	mock.Mock
}

func (m *ModerationRepositoryMock) GetPaused(ctx context.Context, roomKey string) (bool, error) {
	args := m.Called(ctx, roomKey)
	return args.Bool(0), args.Error(1)
}

func (m *ModerationRepositoryMock) SetPaused(ctx context.Context, roomKey string, paused bool) error {
	args := m.Called(ctx, roomKey, paused)
	return args.Error(0)
}

func (m *ModerationRepositoryMock) ClearState(ctx context.Context, roomKey string) error {
	args := m.Called(ctx, roomKey)
	return args.Error(0)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) User(ctx context.Context, userID int) (directory.User, error) {
	args := m.Called(ctx, userID)
	var user directory.User
	if val := args.Get(0); val != nil {
		user = val.(directory.User)
	}
	return user, args.Error(1)
}

func (m *DirectoryMock) UsersByIDs(ctx context.Context, ids []int) ([]directory.User, error) {
	args := m.Called(ctx, ids)
	var users []directory.User
	if val := args.Get(0); val != nil {
		users = val.([]directory.User)
	}
	return users, args.Error(1)
}

func (m *DirectoryMock) ServiceExists(ctx context.Context, serviceID int) (bool, error) {
	args := m.Called(ctx, serviceID)
	return args.Bool(0), args.Error(1)
}

func (m *DirectoryMock) ServiceStaff(ctx context.Context, serviceID int) ([]int, error) {
	args := m.Called(ctx, serviceID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *DirectoryMock) ServiceClient(ctx context.Context, serviceID int) (int, error) {
	args := m.Called(ctx, serviceID)
	return args.Int(0), args.Error(1)
}

func (m *DirectoryMock) AdminIDs(ctx context.Context) ([]int, error) {
	args := m.Called(ctx)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type LedgerMock struct {
	mock.Mock
}

func (m *LedgerMock) RecordDelivery(ctx context.Context, roomKey string, recipientIDs []int, senderID int) error {
	args := m.Called(ctx, roomKey, recipientIDs, senderID)
	return args.Error(0)
}

func (m *LedgerMock) Snapshot(ctx context.Context, userID int) (map[string]int, error) {
	args := m.Called(ctx, userID)
	var counts map[string]int
	if val := args.Get(0); val != nil {
		counts = val.(map[string]int)
	}
	return counts, args.Error(1)
}

func (m *LedgerMock) Reset(ctx context.Context, userID int, roomKey string) error {
	args := m.Called(ctx, userID, roomKey)
	return args.Error(0)
}

func (m *LedgerMock) ResetRoom(ctx context.Context, roomKey string, memberIDs []int) error {
	args := m.Called(ctx, roomKey, memberIDs)
	return args.Error(0)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.GeneralChatRepository = (*GeneralChatRepositoryMock)(nil)
var _ repositories.ModerationRepository = (*ModerationRepositoryMock)(nil)
var _ directory.Directory = (*DirectoryMock)(nil)
var _ ledger.Ledger = (*LedgerMock)(nil)
