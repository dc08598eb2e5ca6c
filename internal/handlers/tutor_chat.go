package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tutor-chat/internal/models"
	"tutor-chat/internal/observability"
	"tutor-chat/internal/repositories"
	"tutor-chat/internal/telemetry"
	"tutor-chat/internal/uploads"
)

// TutorChatHandler handles the 1:1 student/tutor chat endpoints.
type TutorChatHandler struct {
	chatRepo    repositories.TutorChatRepository
	messageRepo repositories.TutorMessageRepository
	userRepo    repositories.UserRepository
	uploads     *uploads.Store
	audit       *telemetry.AuditEmitter
}

// NewTutorChatHandler constructs a TutorChatHandler.
func NewTutorChatHandler(chatRepo repositories.TutorChatRepository, messageRepo repositories.TutorMessageRepository, userRepo repositories.UserRepository, store *uploads.Store, audit *telemetry.AuditEmitter) *TutorChatHandler {
	return &TutorChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		uploads:     store,
		audit:       audit,
	}
}

// ListChats returns the caller's tutor chats.
func (h *TutorChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chatRepo.ListChatsForUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chats"})
		return
	}
	if chats == nil {
		chats = []models.TutorChat{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates or returns the chat between a student and a tutor. The
// caller fills whichever side it leaves out.
func (h *TutorChatHandler) StartChat(c *gin.Context) {
	var req struct {
		StudentID int `json:"student_id"`
		TutorID   int `json:"tutor_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	switch {
	case req.StudentID == 0 && req.TutorID == 0:
		c.JSON(http.StatusBadRequest, gin.H{"error": "student_id or tutor_id is required"})
		return
	case req.StudentID == 0:
		req.StudentID = userID
	case req.TutorID == 0:
		req.TutorID = userID
	}
	if req.StudentID != userID && req.TutorID != userID {
		h.emitAudit(c, "ERROR", "not allowed to start chat")
		c.JSON(http.StatusForbidden, gin.H{"error": "caller must take part in the chat"})
		return
	}
	rememberUser(c, h.userRepo)

	chat, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), req.StudentID, req.TutorID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfChat) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot chat with yourself"})
			return
		}
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create chat"})
		return
	}

	h.emitAudit(c, "INFO", "Tutor chat started")
	c.JSON(http.StatusOK, chat)
}

// GetMessages returns the history of a tutor chat.
func (h *TutorChatHandler) GetMessages(c *gin.Context) {
	chat, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	msgs, err := h.messageRepo.ListTutorMessages(c.Request.Context(), chat.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.TutorMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage stores a message addressed to the other participant.
func (h *TutorChatHandler) PostMessage(c *gin.Context) {
	chat, ok := h.requireParticipant(c)
	if !ok {
		return
	}

	in, err := bindMessageInput(c)
	if err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if in.ReceiverID == 0 || in.ReceiverID != counterpart(chat, userID) {
		h.emitAudit(c, "ERROR", "invalid receiver")
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver must be the other chat participant"})
		return
	}

	payload, err := buildPayload(h.uploads, in)
	if err != nil {
		h.emitAudit(c, "ERROR", "invalid message payload")
		c.JSON(payloadStatus(err), gin.H{"error": err.Error()})
		return
	}
	rememberUser(c, h.userRepo)

	msg, err := h.messageRepo.CreateTutorMessage(c.Request.Context(), chat.ID, userID, in.ReceiverID, payload)
	if err != nil {
		discardPayload(h.uploads, payload)
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageCreated(string(models.KindTutor), string(msg.Type))
	if payload.FileSize != nil {
		observability.AddUploadBytes(string(msg.Type), *payload.FileSize)
	}
	h.audit.MessageEvent(c.Request.Context(), models.MessageEvent{
		Type:           "created",
		ConversationID: chat.ID,
		Kind:           string(models.KindTutor),
		MessageID:      msg.ID,
		UserID:         userID,
	})
	h.emitAudit(c, "INFO", "Tutor message sent")
	c.JSON(http.StatusCreated, msg)
}

func (h *TutorChatHandler) requireParticipant(c *gin.Context) (models.TutorChat, bool) {
	chatID, err := strconv.Atoi(c.Param("chat_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return models.TutorChat{}, false
	}

	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if err != nil {
		if errors.Is(err, repositories.ErrChatNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
			return models.TutorChat{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat"})
		return models.TutorChat{}, false
	}

	userID := c.GetInt("userID")
	if chat.StudentID != userID && chat.TutorID != userID {
		h.emitAudit(c, "ERROR", "not allowed")
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat member"})
		return models.TutorChat{}, false
	}
	return chat, true
}

func (h *TutorChatHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func counterpart(chat models.TutorChat, userID int) int {
	if chat.StudentID == userID {
		return chat.TutorID
	}
	return chat.StudentID
}
