package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestMessageBodyDispatchesOnType(t *testing.T) {
	voice := Message{ID: 1, Type: MessageVoice, Content: "Voice message (2s)", AudioURL: strPtr("/uploads/a.webm")}
	body, err := voice.Body()
	require.NoError(t, err)
	vb, ok := body.(VoiceBody)
	require.True(t, ok)
	assert.Equal(t, "/uploads/a.webm", vb.AudioURL)

	size := int64(42)
	file := Message{ID: 2, Type: MessageFile, FileURL: strPtr("/uploads/b.pdf"), FileName: strPtr("b.pdf"), FileSize: &size}
	body, err = file.Body()
	require.NoError(t, err)
	fb := body.(FileBody)
	assert.Equal(t, "b.pdf", fb.Name)
	assert.Equal(t, int64(42), fb.Size)

	text := Message{ID: 3, Type: MessageText, Content: "hi"}
	body, err = text.Body()
	require.NoError(t, err)
	assert.Equal(t, MessageText, body.Kind())
}

func TestMessageValidateRequiresPrimaryPayload(t *testing.T) {
	assert.ErrorIs(t, Message{Type: MessageVoice}.Validate(), ErrMissingAudioURL)
	assert.ErrorIs(t, Message{Type: MessageImage}.Validate(), ErrMissingFileURL)
	assert.ErrorIs(t, Message{Type: MessageText, Content: "  "}.Validate(), ErrMissingContent)
	assert.ErrorIs(t, Message{Type: "STICKER"}.Validate(), ErrUnknownType)
}

func TestTutorMessagePlatformSender(t *testing.T) {
	now := time.Now()
	msg := TutorMessage{ID: 9, SenderID: 0, ReceiverID: 4, Content: "welcome", CreatedAt: now}.ToMessage()
	assert.Equal(t, PlatformAuthor, msg.Author)
	assert.Equal(t, MessageText, msg.Type)

	msg = TutorMessage{ID: 10, SenderID: 4, Sender: &Author{FirstName: "Ana", LastName: "Ng"}}.ToMessage()
	assert.Equal(t, 4, msg.Author.ID)
	assert.Equal(t, "Ana Ng", msg.Author.DisplayName())
}

func TestConversationPermissions(t *testing.T) {
	conv := Conversation{ID: 1, Kind: KindGroup, CreatorID: 1, Members: []Member{
		{UserID: 1, Role: RoleOwner},
		{UserID: 2, Role: RoleAdmin},
		{UserID: 3, Role: RoleMember},
	}}
	assert.True(t, conv.CanPin(2))
	assert.False(t, conv.CanPin(3))
	assert.False(t, conv.CanPin(17))

	own := Message{AuthorID: 3}
	assert.True(t, conv.CanModify(3, own))
	assert.True(t, conv.CanModify(2, own))
	assert.False(t, conv.CanModify(4, own))

	tutor := TutorConversation(TutorChat{ID: 5, StudentID: 3, TutorID: 8})
	assert.False(t, tutor.CanPin(8))
	assert.False(t, tutor.CanModify(3, Message{AuthorID: 3}))
}
