package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tutor-chat/internal/mocks"
	"tutor-chat/internal/models"
)

func TestEmitBuildsEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(pub, "audit.chat", "tutor-chat", "test")
	userID := int64(12)

	pub.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env AuditEnvelope) bool {
		return env.EventType == "audit_log" && env.RequestID == "req-1" && env.UserID != nil && *env.UserID == "12" && env.Payload.Text == "Group created"
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "INFO", "Group created", "req-1", &userID)
	pub.AssertExpectations(t)
}

func TestMessageEventRoutingKey(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(pub, "audit.chat", "tutor-chat", "test")
	event := models.MessageEvent{Type: "created", ConversationID: 3, Kind: "group", MessageID: 9, UserID: 1}

	pub.On("Publish", mock.Anything, "message.created", event).Return(nil).Once()
	emitter.MessageEvent(context.Background(), event)
	pub.AssertExpectations(t)
}

func TestNilEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	require.NotPanics(t, func() {
		emitter.Emit(context.Background(), "INFO", "x", "r", nil)
		emitter.MessageEvent(context.Background(), models.MessageEvent{})
	})
	assert.Nil(t, emitter)
}
