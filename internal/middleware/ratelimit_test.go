package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func rateLimitedRouter(rps float64, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if id := c.GetHeader("X-Test-User"); id == "2" {
			c.Set("userID", 2)
		} else {
			c.Set("userID", 1)
		}
		c.Next()
	})
	r.POST("/send", RateLimit(rps, burst), func(c *gin.Context) { c.Status(http.StatusCreated) })
	return r
}

func post(r *gin.Engine, user string) int {
	req := httptest.NewRequest(http.MethodPost, "/send", nil)
	req.Header.Set("X-Test-User", user)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitPerUser(t *testing.T) {
	r := rateLimitedRouter(0.001, 2)

	assert.Equal(t, http.StatusCreated, post(r, "1"))
	assert.Equal(t, http.StatusCreated, post(r, "1"))
	assert.Equal(t, http.StatusTooManyRequests, post(r, "1"))
	assert.Equal(t, http.StatusCreated, post(r, "2"))
}

func TestRateLimitDisabled(t *testing.T) {
	r := rateLimitedRouter(0, 0)
	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusCreated, post(r, "1"))
	}
}
