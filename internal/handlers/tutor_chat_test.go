package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/mocks"
	"tutor-chat/internal/models"
	"tutor-chat/internal/repositories"
	"tutor-chat/internal/uploads"
)

func setupTutorRouter(t *testing.T) (*gin.Engine, *mocks.TutorChatRepositoryMock, *mocks.TutorMessageRepositoryMock) {
	chats := new(mocks.TutorChatRepositoryMock)
	messages := new(mocks.TutorMessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	users.On("Upsert", mock.Anything, testUser).Return(nil).Maybe()
	handler := NewTutorChatHandler(chats, messages, users, newTestStore(t, 1<<20), nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withTestUser)
	r.GET("/tutor-chats", handler.ListChats)
	r.POST("/tutor-chats/start", handler.StartChat)
	r.GET("/tutor-chats/:chat_id/messages", handler.GetMessages)
	r.POST("/tutor-chats/:chat_id/messages", handler.PostMessage)
	return r, chats, messages
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestListTutorChats(t *testing.T) {
	r, chats, _ := setupTutorRouter(t)
	chats.On("ListChatsForUser", mock.Anything, 1).Return([]models.TutorChat{{ID: 4, StudentID: 1, TutorID: 7, CreatorID: 1}}, nil).Once()

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/tutor-chats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Chats []models.TutorChat `json:"chats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Chats, 1)
	assert.Equal(t, 7, body.Chats[0].TutorID)
}

func TestStartChatFillsCallerSide(t *testing.T) {
	r, chats, _ := setupTutorRouter(t)
	chats.On("CreateOrGetChat", mock.Anything, 1, 7, 1).Return(models.TutorChat{ID: 4, StudentID: 1, TutorID: 7, CreatorID: 1}, nil).Once()

	rec := serve(r, jsonRequest(http.MethodPost, "/tutor-chats/start", `{"tutor_id":7}`))

	require.Equal(t, http.StatusOK, rec.Code)
	chats.AssertExpectations(t)
}

func TestStartChatWithSelf(t *testing.T) {
	r, chats, _ := setupTutorRouter(t)
	chats.On("CreateOrGetChat", mock.Anything, 1, 1, 1).Return(nil, repositories.ErrSelfChat).Once()

	rec := serve(r, jsonRequest(http.MethodPost, "/tutor-chats/start", `{"student_id":1,"tutor_id":1}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartChatForOtherPairForbidden(t *testing.T) {
	r, chats, _ := setupTutorRouter(t)

	rec := serve(r, jsonRequest(http.MethodPost, "/tutor-chats/start", `{"student_id":5,"tutor_id":7}`))

	require.Equal(t, http.StatusForbidden, rec.Code)
	chats.AssertNotCalled(t, "CreateOrGetChat", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetTutorMessages(t *testing.T) {
	r, chats, messages := setupTutorRouter(t)
	chats.On("GetChat", mock.Anything, 4).Return(models.TutorChat{ID: 4, StudentID: 1, TutorID: 7}, nil).Once()
	messages.On("ListTutorMessages", mock.Anything, 4).Return([]models.TutorMessage{
		{ID: 1, ChatID: 4, SenderID: 0, ReceiverID: 1, Content: "Welcome", Type: models.MessageText},
		{ID: 2, ChatID: 4, SenderID: 7, ReceiverID: 1, Content: "hello", Type: models.MessageText},
	}, nil).Once()

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/tutor-chats/4/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []models.TutorMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, models.PlatformAuthor, body.Messages[0].ToMessage().Author)
}

func TestGetTutorMessagesChatGone(t *testing.T) {
	r, chats, _ := setupTutorRouter(t)
	chats.On("GetChat", mock.Anything, 4).Return(nil, repositories.ErrChatNotFound).Once()

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/tutor-chats/4/messages", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetTutorMessagesNotParticipant(t *testing.T) {
	r, chats, messages := setupTutorRouter(t)
	chats.On("GetChat", mock.Anything, 4).Return(models.TutorChat{ID: 4, StudentID: 5, TutorID: 7}, nil).Once()

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/tutor-chats/4/messages", nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "ListTutorMessages", mock.Anything, mock.Anything)
}

func TestPostTutorMessageRequiresCounterpart(t *testing.T) {
	r, chats, messages := setupTutorRouter(t)
	chats.On("GetChat", mock.Anything, 4).Return(models.TutorChat{ID: 4, StudentID: 1, TutorID: 7}, nil)

	for _, body := range []string{`{"content":"hi"}`, `{"content":"hi","receiver_id":9}`, `{"content":"hi","receiver_id":1}`} {
		rec := serve(r, jsonRequest(http.MethodPost, "/tutor-chats/4/messages", body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	messages.AssertNotCalled(t, "CreateTutorMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPostTutorMessageText(t *testing.T) {
	r, chats, messages := setupTutorRouter(t)
	chats.On("GetChat", mock.Anything, 4).Return(models.TutorChat{ID: 4, StudentID: 1, TutorID: 7}, nil).Once()
	messages.On("CreateTutorMessage", mock.Anything, 4, 1, 7, repositories.Payload{Content: "hi", Type: models.MessageText}).
		Return(models.TutorMessage{ID: 10, ChatID: 4, SenderID: 1, ReceiverID: 7, Content: "hi", Type: models.MessageText}, nil).Once()

	rec := serve(r, jsonRequest(http.MethodPost, "/tutor-chats/4/messages", `{"content":"hi","type":"TEXT","receiver_id":7}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	messages.AssertExpectations(t)
}

func TestPostTutorMessageFileUpload(t *testing.T) {
	r, chats, messages := setupTutorRouter(t)
	chats.On("GetChat", mock.Anything, 4).Return(models.TutorChat{ID: 4, StudentID: 7, TutorID: 1}, nil).Once()
	messages.On("CreateTutorMessage", mock.Anything, 4, 1, 7, mock.MatchedBy(func(p repositories.Payload) bool {
		return p.Type == models.MessageFile && p.Content == "homework.pdf" && p.FileURL != nil && p.FileType != nil && *p.FileType == "application/pdf"
	})).Return(models.TutorMessage{ID: 11, ChatID: 4, SenderID: 1, ReceiverID: 7, Type: models.MessageFile}, nil).Once()

	req := multipartRequest(t, http.MethodPost, "/tutor-chats/4/messages",
		map[string]string{"type": "FILE", "receiver_id": "7"}, "homework.pdf", "application/pdf", []byte("%PDF-1.4"))
	rec := serve(r, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	messages.AssertExpectations(t)
}

func TestPostTutorMessageStoreFailureRemovesUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := uploads.NewStore(dir, "/uploads", 1<<20)
	require.NoError(t, err)
	chats := new(mocks.TutorChatRepositoryMock)
	messages := new(mocks.TutorMessageRepositoryMock)
	users := new(mocks.UserRepositoryMock)
	users.On("Upsert", mock.Anything, testUser).Return(nil).Maybe()
	handler := NewTutorChatHandler(chats, messages, users, store, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(withTestUser)
	r.POST("/tutor-chats/:chat_id/messages", handler.PostMessage)

	chats.On("GetChat", mock.Anything, 4).Return(models.TutorChat{ID: 4, StudentID: 1, TutorID: 7}, nil).Once()
	messages.On("CreateTutorMessage", mock.Anything, 4, 1, 7, mock.Anything).Return(nil, errors.New("db down")).Once()

	req := multipartRequest(t, http.MethodPost, "/tutor-chats/4/messages",
		map[string]string{"type": "IMAGE", "receiver_id": "7"}, "photo.png", "image/png", []byte("png"))
	rec := serve(r, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
