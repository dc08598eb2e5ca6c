package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tutor-chat/internal/cache"
	"tutor-chat/internal/models"
	"tutor-chat/internal/observability"
	"tutor-chat/internal/repositories"
	"tutor-chat/internal/telemetry"
	"tutor-chat/internal/uploads"
)

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	groupRepo    repositories.GroupRepository
	messageRepo  repositories.GroupMessageRepository
	reactionRepo repositories.ReactionRepository
	userRepo     repositories.UserRepository
	uploads      *uploads.Store
	pinned       cache.PinnedCache
	audit        *telemetry.AuditEmitter
}

// NewGroupHandler constructs a GroupHandler.
func NewGroupHandler(groupRepo repositories.GroupRepository, messageRepo repositories.GroupMessageRepository, reactionRepo repositories.ReactionRepository, userRepo repositories.UserRepository, store *uploads.Store, pinned cache.PinnedCache, audit *telemetry.AuditEmitter) *GroupHandler {
	if pinned == nil {
		pinned = cache.NewPinnedCache("", 0)
	}
	return &GroupHandler{
		groupRepo:    groupRepo,
		messageRepo:  messageRepo,
		reactionRepo: reactionRepo,
		userRepo:     userRepo,
		uploads:      store,
		pinned:       pinned,
		audit:        audit,
	}
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.rememberUser(c)

	group, err := h.groupRepo.CreateGroup(c.Request.Context(), userID, req.Name, req.MemberIDs)
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create group"})
		return
	}

	h.emitAudit(c, "INFO", "Group created")
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns groups the caller belongs to, with member roles.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID := c.GetInt("userID")
	groups, err := h.groupRepo.ListGroupsForUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load groups"})
		return
	}
	if groups == nil {
		groups = []models.Group{}
	}
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// GetGroupMessages returns messages in the group.
func (h *GroupHandler) GetGroupMessages(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := h.requireMember(c, groupID); !ok {
		return
	}

	msgs, err := h.messageRepo.ListGroupMessages(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostGroupMessage stores a group message sent as JSON or multipart.
func (h *GroupHandler) PostGroupMessage(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := h.requireMember(c, groupID); !ok {
		return
	}

	in, err := bindMessageInput(c)
	if err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload, err := buildPayload(h.uploads, in)
	if err != nil {
		h.emitAudit(c, "ERROR", "invalid message payload")
		c.JSON(payloadStatus(err), gin.H{"error": err.Error()})
		return
	}
	h.rememberUser(c)

	userID := c.GetInt("userID")
	msg, err := h.messageRepo.CreateGroupMessage(c.Request.Context(), groupID, userID, payload)
	if err != nil {
		discardPayload(h.uploads, payload)
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageCreated(string(models.KindGroup), string(msg.Type))
	if payload.FileSize != nil {
		observability.AddUploadBytes(string(msg.Type), *payload.FileSize)
	}
	h.publish(c, "created", groupID, msg.ID)
	h.emitAudit(c, "INFO", "Group message sent")
	c.JSON(http.StatusCreated, msg)
}

// UpdateMessage edits the content of a message. Authors may edit their own
// messages; owners and admins may edit any.
func (h *GroupHandler) UpdateMessage(c *gin.Context) {
	groupID, messageID, ok := parseGroupIDs(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	msg, ok := h.requireModifiable(c, groupID, messageID)
	if !ok {
		return
	}

	updated, err := h.messageRepo.UpdateContent(c.Request.Context(), groupID, messageID, strings.TrimSpace(req.Content))
	if err != nil {
		h.respondMessageError(c, err, "could not update message")
		return
	}
	if msg.IsPinned {
		h.pinned.Invalidate(c.Request.Context(), groupID)
	}

	h.publish(c, "updated", groupID, messageID)
	h.emitAudit(c, "INFO", "Group message edited")
	c.JSON(http.StatusOK, updated)
}

// DeleteMessage removes a message for everyone.
func (h *GroupHandler) DeleteMessage(c *gin.Context) {
	groupID, messageID, ok := parseGroupIDs(c)
	if !ok {
		return
	}

	msg, ok := h.requireModifiable(c, groupID, messageID)
	if !ok {
		return
	}

	if err := h.messageRepo.Delete(c.Request.Context(), groupID, messageID); err != nil {
		h.respondMessageError(c, err, "could not delete")
		return
	}
	if msg.IsPinned {
		h.pinned.Invalidate(c.Request.Context(), groupID)
	}

	h.publish(c, "deleted", groupID, messageID)
	h.emitAudit(c, "INFO", "Group message deleted")
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ToggleReaction adds the caller's emoji or removes it when already present.
func (h *GroupHandler) ToggleReaction(c *gin.Context) {
	groupID, messageID, ok := parseGroupIDs(c)
	if !ok {
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Emoji) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "emoji is required"})
		return
	}
	if _, ok := h.requireMember(c, groupID); !ok {
		return
	}

	msg, err := h.messageRepo.GetGroupMessage(c.Request.Context(), groupID, messageID)
	if err != nil {
		h.respondMessageError(c, err, "message not found")
		return
	}
	h.rememberUser(c)

	res, err := h.reactionRepo.Toggle(c.Request.Context(), messageID, c.GetInt("userID"), strings.TrimSpace(req.Emoji))
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not toggle reaction"})
		return
	}
	if msg.IsPinned {
		h.pinned.Invalidate(c.Request.Context(), groupID)
	}

	h.publish(c, "reaction_"+res.Action, groupID, messageID)
	c.JSON(http.StatusOK, res)
}

// Pin marks a message as pinned. Owners and admins only.
func (h *GroupHandler) Pin(c *gin.Context) {
	h.setPinned(c, true)
}

// Unpin clears the pin of a message. Owners and admins only.
func (h *GroupHandler) Unpin(c *gin.Context) {
	h.setPinned(c, false)
}

// GetPinned returns the pinned messages of a group.
func (h *GroupHandler) GetPinned(c *gin.Context) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return
	}
	if _, ok := h.requireMember(c, groupID); !ok {
		return
	}

	if msgs, ok := h.pinned.Get(c.Request.Context(), groupID); ok {
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
		return
	}

	msgs, err := h.messageRepo.ListPinned(c.Request.Context(), groupID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pinned messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	h.pinned.Set(c.Request.Context(), groupID, msgs)
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *GroupHandler) setPinned(c *gin.Context, pinned bool) {
	groupID, messageID, ok := parseGroupIDs(c)
	if !ok {
		return
	}
	role, ok := h.requireMember(c, groupID)
	if !ok {
		return
	}
	if !role.Elevated() {
		h.emitAudit(c, "ERROR", "not allowed to pin")
		c.JSON(http.StatusForbidden, gin.H{"error": "only group owners and admins can pin messages"})
		return
	}

	msg, err := h.messageRepo.SetPinned(c.Request.Context(), groupID, messageID, pinned, c.GetInt("userID"))
	if err != nil {
		h.respondMessageError(c, err, "could not update pin")
		return
	}
	h.pinned.Invalidate(c.Request.Context(), groupID)

	event := "unpinned"
	if pinned {
		event = "pinned"
	}
	h.publish(c, event, groupID, messageID)
	h.emitAudit(c, "INFO", "Group message "+event)
	c.JSON(http.StatusOK, msg)
}

// requireMember writes 404 for a missing group and 403 for a non-member.
func (h *GroupHandler) requireMember(c *gin.Context, groupID int) (models.Role, bool) {
	ctx := c.Request.Context()
	role, member, err := h.groupRepo.MemberRole(ctx, groupID, c.GetInt("userID"))
	if err != nil {
		h.emitAudit(c, "ERROR", "internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "membership check failed"})
		return "", false
	}
	if member {
		return role, true
	}

	if _, err := h.groupRepo.GetGroup(ctx, groupID); errors.Is(err, repositories.ErrGroupNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return "", false
	}
	h.emitAudit(c, "ERROR", "not allowed")
	c.JSON(http.StatusForbidden, gin.H{"error": "not a member"})
	return "", false
}

func (h *GroupHandler) requireModifiable(c *gin.Context, groupID, messageID int) (models.Message, bool) {
	role, ok := h.requireMember(c, groupID)
	if !ok {
		return models.Message{}, false
	}
	msg, err := h.messageRepo.GetGroupMessage(c.Request.Context(), groupID, messageID)
	if err != nil {
		h.respondMessageError(c, err, "message not found")
		return models.Message{}, false
	}
	if msg.AuthorID != c.GetInt("userID") && !role.Elevated() {
		h.emitAudit(c, "ERROR", "not allowed to modify message")
		c.JSON(http.StatusForbidden, gin.H{"error": "only the author, owners and admins may modify this message"})
		return models.Message{}, false
	}
	return msg, true
}

func (h *GroupHandler) respondMessageError(c *gin.Context, err error, text string) {
	if errors.Is(err, repositories.ErrMessageNotFound) {
		h.emitAudit(c, "ERROR", "message not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	h.emitAudit(c, "ERROR", "internal error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": text})
}

func (h *GroupHandler) rememberUser(c *gin.Context) {
	rememberUser(c, h.userRepo)
}

func (h *GroupHandler) publish(c *gin.Context, eventType string, groupID, messageID int) {
	h.audit.MessageEvent(c.Request.Context(), models.MessageEvent{
		Type:           eventType,
		ConversationID: groupID,
		Kind:           string(models.KindGroup),
		MessageID:      messageID,
		UserID:         c.GetInt("userID"),
	})
}

func (h *GroupHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}

func parseGroupID(c *gin.Context) (int, bool) {
	groupID, err := strconv.Atoi(c.Param("group_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group id"})
		return 0, false
	}
	return groupID, true
}

func parseGroupIDs(c *gin.Context) (int, int, bool) {
	groupID, ok := parseGroupID(c)
	if !ok {
		return 0, 0, false
	}
	msgID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, 0, false
	}
	return groupID, msgID, true
}
