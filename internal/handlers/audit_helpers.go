package handlers

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tutor-chat/internal/models"
	"tutor-chat/internal/repositories"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int64 {
	if val, ok := c.Get("userID"); ok {
		switch userID := val.(type) {
		case int:
			if userID != 0 {
				value := int64(userID)
				return &value
			}
		case int64:
			if userID != 0 {
				value := userID
				return &value
			}
		}
	}

	if header := c.GetHeader("X-User-ID"); header != "" {
		if parsed, err := strconv.ParseInt(header, 10, 64); err == nil {
			return &parsed
		}
	}

	return nil
}

// userFromContext returns the profile carried by the bearer token.
func userFromContext(c *gin.Context) (models.Author, bool) {
	val, ok := c.Get("user")
	if !ok {
		return models.Author{}, false
	}
	user, ok := val.(models.Author)
	return user, ok && user.ID != 0
}

// rememberUser stores the caller's profile so messages can embed it.
func rememberUser(c *gin.Context, users repositories.UserRepository) {
	if users == nil {
		return
	}
	user, ok := userFromContext(c)
	if !ok {
		return
	}
	if err := users.Upsert(c.Request.Context(), user); err != nil {
		log.Printf("user upsert failed: user_id=%d err=%v", user.ID, err)
	}
}
