package telemetry

import (
	"context"
	"log"
	"strconv"
	"time"

	"tutor-chat/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
}

type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *int64) {
	if e == nil || e.publisher == nil {
		return
	}

	var user *string
	if userID != nil {
		s := strconv.FormatInt(*userID, 10)
		user = &s
	}

	log.Printf("audit emit: level=%s request_id=%s user_id=%v text=%q", level, requestID, deref(user), text)
	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        user,
		Payload: AuditPayload{
			Level: level,
			Text:  text,
		},
	}

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		log.Printf("audit publish failed: %v", err)
	}
}

// MessageEvent publishes a message lifecycle event under "message.<type>".
func (e *AuditEmitter) MessageEvent(ctx context.Context, event models.MessageEvent) {
	if e == nil || e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, "message."+event.Type, event); err != nil {
		log.Printf("message event publish failed: type=%s message_id=%d err=%v", event.Type, event.MessageID, err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
