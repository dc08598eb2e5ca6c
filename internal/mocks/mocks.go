package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tutor-chat/internal/models"
	"tutor-chat/internal/repositories"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, ownerID int, name string, memberIDs []int) (models.Group, error) {
	args := m.Called(ctx, ownerID, name, memberIDs)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) MemberRole(ctx context.Context, groupID int, userID int) (models.Role, bool, error) {
	args := m.Called(ctx, groupID, userID)
	var role models.Role
	if val := args.Get(0); val != nil {
		role = val.(models.Role)
	}
	return role, args.Bool(1), args.Error(2)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

type GroupMessageRepositoryMock struct {
	mock.Mock
}

func (m *GroupMessageRepositoryMock) CreateGroupMessage(ctx context.Context, groupID int, authorID int, p repositories.Payload) (models.Message, error) {
	args := m.Called(ctx, groupID, authorID, p)
	return messageArg(args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListGroupMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	return messagesArg(args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) ListPinned(ctx context.Context, groupID int) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	return messagesArg(args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) GetGroupMessage(ctx context.Context, groupID int, messageID int) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID)
	return messageArg(args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) UpdateContent(ctx context.Context, groupID int, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID, content)
	return messageArg(args, 0), args.Error(1)
}

func (m *GroupMessageRepositoryMock) Delete(ctx context.Context, groupID int, messageID int) error {
	args := m.Called(ctx, groupID, messageID)
	return args.Error(0)
}

func (m *GroupMessageRepositoryMock) SetPinned(ctx context.Context, groupID int, messageID int, pinned bool, by int) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID, pinned, by)
	return messageArg(args, 0), args.Error(1)
}

type ReactionRepositoryMock struct {
	mock.Mock
}

func (m *ReactionRepositoryMock) Toggle(ctx context.Context, messageID int, userID int, emoji string) (models.ToggleResult, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	var res models.ToggleResult
	if val := args.Get(0); val != nil {
		res = val.(models.ToggleResult)
	}
	return res, args.Error(1)
}

type TutorChatRepositoryMock struct {
	mock.Mock
}

func (m *TutorChatRepositoryMock) CreateOrGetChat(ctx context.Context, studentID int, tutorID int, creatorID int) (models.TutorChat, error) {
	args := m.Called(ctx, studentID, tutorID, creatorID)
	var chat models.TutorChat
	if val := args.Get(0); val != nil {
		chat = val.(models.TutorChat)
	}
	return chat, args.Error(1)
}

func (m *TutorChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.TutorChat, error) {
	args := m.Called(ctx, chatID)
	var chat models.TutorChat
	if val := args.Get(0); val != nil {
		chat = val.(models.TutorChat)
	}
	return chat, args.Error(1)
}

func (m *TutorChatRepositoryMock) ListChatsForUser(ctx context.Context, userID int) ([]models.TutorChat, error) {
	args := m.Called(ctx, userID)
	var chats []models.TutorChat
	if val := args.Get(0); val != nil {
		chats = val.([]models.TutorChat)
	}
	return chats, args.Error(1)
}

type TutorMessageRepositoryMock struct {
	mock.Mock
}

func (m *TutorMessageRepositoryMock) CreateTutorMessage(ctx context.Context, chatID int, senderID int, receiverID int, p repositories.Payload) (models.TutorMessage, error) {
	args := m.Called(ctx, chatID, senderID, receiverID, p)
	var msg models.TutorMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.TutorMessage)
	}
	return msg, args.Error(1)
}

func (m *TutorMessageRepositoryMock) ListTutorMessages(ctx context.Context, chatID int) ([]models.TutorMessage, error) {
	args := m.Called(ctx, chatID)
	var msgs []models.TutorMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.TutorMessage)
	}
	return msgs, args.Error(1)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) Upsert(ctx context.Context, user models.Author) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func messageArg(args mock.Arguments, i int) models.Message {
	var msg models.Message
	if val := args.Get(i); val != nil {
		msg = val.(models.Message)
	}
	return msg
}

func messagesArg(args mock.Arguments, i int) []models.Message {
	var msgs []models.Message
	if val := args.Get(i); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs
}
