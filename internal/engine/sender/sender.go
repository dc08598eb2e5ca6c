// Package sender validates, encodes and delivers outgoing messages.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tutor-chat/internal/engine/apiclient"
	"tutor-chat/internal/engine/retry"
	"tutor-chat/internal/models"
)

var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrAttachmentTooLarge = errors.New("attachment is too large")
	ErrNoReceiver         = errors.New("no receiver configured for this chat")
	ErrConnectivity       = errors.New("could not reach the server, check your connection")
	ErrNotAvailable       = errors.New("editing is not available in this conversation")
	ErrForbidden          = errors.New("you are not allowed to change this message")
	ErrNotFound           = errors.New("message not found")
)

// DefaultMaxUploadBytes caps attachment size.
const DefaultMaxUploadBytes = 25 << 20

// API is the slice of the transport used by the pipeline.
type API interface {
	CreateMessage(ctx context.Context, conv models.Conversation, req apiclient.SendRequest) (models.Message, error)
}

// Syncer forces a full resync.
type Syncer interface {
	Sync(ctx context.Context) error
}

// DefaultMaxRetries is the number of further attempts after a 5xx or
// network failure.
const DefaultMaxRetries = 2

// Config tunes a Pipeline. A zero MaxRetries means DefaultMaxRetries; a
// negative one disables retries.
type Config struct {
	RetryDelay     time.Duration
	MaxRetries     int
	MaxUploadBytes int64
	Logger         *log.Logger
}

func (c Config) withDefaults() Config {
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	switch {
	case c.MaxRetries == 0:
		c.MaxRetries = DefaultMaxRetries
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	return c
}

// Pipeline sends messages into one conversation.
type Pipeline struct {
	api      API
	conv     models.Conversation
	receiver *ReceiverResolver
	syncer   Syncer
	cfg      Config
}

// NewPipeline constructs a Pipeline. receiver is required for tutor chats.
func NewPipeline(api API, conv models.Conversation, receiver *ReceiverResolver, syncer Syncer, cfg Config) *Pipeline {
	return &Pipeline{api: api, conv: conv, receiver: receiver, syncer: syncer, cfg: cfg.withDefaults()}
}

// Send validates out, delivers it with bounded retries and triggers a sync.
// Sends are independent of each other and may run concurrently.
func (p *Pipeline) Send(ctx context.Context, out Outgoing) (models.Message, error) {
	if out == nil {
		return models.Message{}, ErrEmptyMessage
	}
	req, err := out.request()
	if err != nil {
		observeSend(string(out.Type()), "invalid")
		return models.Message{}, err
	}
	if out.size() > p.cfg.MaxUploadBytes {
		observeSend(string(out.Type()), "invalid")
		return models.Message{}, fmt.Errorf("%w: %d bytes, limit is %d", ErrAttachmentTooLarge, out.size(), p.cfg.MaxUploadBytes)
	}
	if !p.conv.IsGroup() {
		if p.receiver == nil {
			observeSend(string(out.Type()), "invalid")
			return models.Message{}, ErrNoReceiver
		}
		id, err := p.receiver.Resolve(ctx)
		if err != nil {
			observeSend(string(out.Type()), "invalid")
			return models.Message{}, err
		}
		req.ReceiverID = id
	}

	ctx, span := otel.Tracer("tutor-chat/sender").Start(ctx, "sender.send")
	defer span.End()
	span.SetAttributes(
		attribute.Int("conversation.id", p.conv.ID),
		attribute.String("message.type", string(req.Type)),
	)

	attempts := 0
	var sent models.Message
	op := func() error {
		attempts++
		msg, err := p.api.CreateMessage(ctx, p.conv, req)
		if err != nil {
			if !apiclient.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		sent = msg
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.cfg.Logger.Printf("sender: send failed conversation_id=%d type=%s attempt=%d retry_in=%s err=%v", p.conv.ID, req.Type, attempts, wait, err)
	}

	policy := backoff.WithContext(retry.SendPolicy(p.cfg.RetryDelay, p.cfg.MaxRetries), ctx)
	err = backoff.RetryNotify(op, policy, notify)
	span.SetAttributes(attribute.Int("send.attempts", attempts))
	if err != nil {
		return models.Message{}, p.failure(ctx, req.Type, err)
	}

	observeSend(string(req.Type), "ok")
	p.cfg.Logger.Printf("sender: message sent conversation_id=%d type=%s message_id=%d attempts=%d", p.conv.ID, req.Type, sent.ID, attempts)
	p.resync(ctx)
	return sent, nil
}

func (p *Pipeline) failure(ctx context.Context, typ models.MessageType, err error) error {
	switch {
	case errors.Is(err, context.Canceled), ctx.Err() != nil:
		observeSend(string(typ), "canceled")
		return err
	case !apiclient.IsTransient(err):
		observeSend(string(typ), "rejected")
		return err
	}
	observeSend(string(typ), "exhausted")
	if _, ok := apiclient.StatusOf(err); ok {
		return err
	}
	return fmt.Errorf("%w: %v", ErrConnectivity, err)
}

func (p *Pipeline) resync(ctx context.Context) {
	if p.syncer == nil {
		return
	}
	if err := p.syncer.Sync(ctx); err != nil {
		p.cfg.Logger.Printf("sender: resync after send failed conversation_id=%d err=%v", p.conv.ID, err)
	}
}
