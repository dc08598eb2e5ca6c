package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/models"
	"tutor-chat/internal/uploads"
)

var testUser = models.Author{ID: 1, FirstName: "Ann", LastName: "Lee"}

func withTestUser(c *gin.Context) {
	c.Set("userID", testUser.ID)
	c.Set("user", testUser)
	c.Next()
}

func newTestStore(t *testing.T, maxBytes int64) *uploads.Store {
	t.Helper()
	store, err := uploads.NewStore(t.TempDir(), "/uploads", maxBytes)
	require.NoError(t, err)
	return store
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, fileName, mimeType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileName != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
		header.Set("Content-Type", mimeType)
		part, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// countingCache is an in-memory pinned cache that records invalidations.
type countingCache struct {
	mu          sync.Mutex
	lists       map[int][]models.Message
	invalidated int
}

func newCountingCache() *countingCache {
	return &countingCache{lists: map[int][]models.Message{}}
}

func (c *countingCache) Get(_ context.Context, groupID int) ([]models.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, ok := c.lists[groupID]
	return msgs, ok
}

func (c *countingCache) Set(_ context.Context, groupID int, msgs []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists[groupID] = msgs
}

func (c *countingCache) Invalidate(_ context.Context, groupID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, groupID)
	c.invalidated++
}

func (c *countingCache) Close() error { return nil }

func (c *countingCache) Ping(context.Context) error { return nil }
