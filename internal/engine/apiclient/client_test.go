package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/models"
)

func TestGroupMessagesSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/groups/7/messages", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []models.Message{{ID: 1, Type: models.MessageText, Content: "hi"}}})
	}))
	defer srv.Close()

	msgs, err := New(srv.URL, "tok").GroupMessages(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)
}

func TestStatusErrorsAreClassified(t *testing.T) {
	for _, tc := range []struct {
		status       int
		unauthorized bool
		gone         bool
		transient    bool
	}{
		{http.StatusUnauthorized, true, false, false},
		{http.StatusForbidden, false, true, false},
		{http.StatusNotFound, false, true, false},
		{http.StatusBadGateway, false, false, true},
		{http.StatusBadRequest, false, false, false},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))
		_, err := New(srv.URL, "tok").GroupMessages(context.Background(), 1)
		srv.Close()

		require.Error(t, err)
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "nope", se.Message)
		assert.Equal(t, tc.unauthorized, IsUnauthorized(err), tc.status)
		assert.Equal(t, tc.gone, IsGone(err), tc.status)
		assert.Equal(t, tc.transient, IsTransient(err), tc.status)
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, "tok").GroupMessages(context.Background(), 1)
	require.Error(t, err)
	_, ok := StatusOf(err)
	assert.False(t, ok)
	assert.True(t, IsTransient(err))
}

func TestCreateMessageMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "VOICE", r.FormValue("type"))
		assert.Equal(t, "Voice message (2s)", r.FormValue("content"))
		assert.Equal(t, "4", r.FormValue("receiver_id"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "voice.webm", hdr.Filename)
		assert.Equal(t, "audio/webm", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte{1, 2, 3}, data)

		url := "/uploads/x.webm"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.TutorMessage{ID: 5, SenderID: 3, ReceiverID: 4, Type: models.MessageVoice, AudioURL: &url, Content: "Voice message (2s)"})
	}))
	defer srv.Close()

	conv := models.TutorConversation(models.TutorChat{ID: 2, StudentID: 3, TutorID: 4})
	msg, err := New(srv.URL, "tok").CreateMessage(context.Background(), conv, SendRequest{
		Type:       models.MessageVoice,
		Content:    "Voice message (2s)",
		ReceiverID: 4,
		Attachment: &Attachment{Name: "voice.webm", MIME: "audio/webm", Data: []byte{1, 2, 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.MessageVoice, msg.Type)
	assert.Equal(t, 3, msg.AuthorID)
}

func TestCreateMessageJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])
		assert.Equal(t, "TEXT", body["type"])
		_, hasReceiver := body["receiver_id"]
		assert.False(t, hasReceiver)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Message{ID: 11, Type: models.MessageText, Content: "hello"})
	}))
	defer srv.Close()

	conv := models.Conversation{ID: 1, Kind: models.KindGroup}
	msg, err := New(srv.URL, "tok").CreateMessage(context.Background(), conv, SendRequest{Type: models.MessageText, Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, 11, msg.ID)
}
