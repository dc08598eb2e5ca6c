// Package poller keeps the local store in step with the server by fetching
// the authoritative message list on a fixed interval.
package poller

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tutor-chat/internal/engine/apiclient"
	"tutor-chat/internal/engine/connection"
	"tutor-chat/internal/engine/reactions"
	"tutor-chat/internal/engine/retry"
	"tutor-chat/internal/engine/store"
	"tutor-chat/internal/models"
)

// ErrStopped is returned by Sync once the poller has been stopped.
var ErrStopped = errors.New("poller stopped")

// API is the slice of the transport the poller reads from.
type API interface {
	GroupMessages(ctx context.Context, groupID int) ([]models.Message, error)
	PinnedMessages(ctx context.Context, groupID int) ([]models.Message, error)
	TutorMessages(ctx context.Context, chatID int) ([]models.TutorMessage, error)
}

// Hooks are the signals raised to the owning view. All are optional.
type Hooks struct {
	// SessionExpired fires once when the server rejects the token.
	SessionExpired func()
	// ConversationClosed fires once when the conversation is gone or the
	// membership was revoked.
	ConversationClosed func(conv models.Conversation, err error)
	// RefreshList asks the parent conversation list to reload.
	RefreshList func()
	// Error fires once per exhausted retry cycle.
	Error func(err error)
}

// Config tunes the poll loop.
type Config struct {
	Interval    time.Duration
	RetryBase   time.Duration
	MaxAttempts int
	Logger      *log.Logger
	Now         func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Poller is the sole writer of a conversation's store.
type Poller struct {
	api    API
	conv   models.Conversation
	store  *store.Store
	index  *reactions.Index
	status *connection.Machine
	cfg    Config
	hooks  Hooks

	cycleMu sync.Mutex

	mu       sync.Mutex
	paused   bool
	stopped  bool
	done     chan struct{}
	kick     chan struct{}
	stopOnce sync.Once
}

// New constructs a Poller for conv.
func New(api API, conv models.Conversation, st *store.Store, index *reactions.Index, status *connection.Machine, cfg Config, hooks Hooks) *Poller {
	return &Poller{
		api:    api,
		conv:   conv,
		store:  st,
		index:  index,
		status: status,
		cfg:    cfg.withDefaults(),
		hooks:  hooks,
		done:   make(chan struct{}),
		kick:   make(chan struct{}, 1),
	}
}

// Run syncs immediately and then on every tick until ctx is done or the
// poller stops. After a cycle exhausts its attempts, ticks are ignored until
// Reconnect is called.
func (p *Poller) Run(ctx context.Context) error {
	_ = p.Sync(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
			return nil
		case <-ticker.C:
			if p.isPaused() {
				continue
			}
			_ = p.Sync(ctx)
		case <-p.kick:
			_ = p.Sync(ctx)
		}
	}
}

// Sync runs one fetch-and-replace cycle, retrying transient failures.
// Cycles never overlap.
func (p *Poller) Sync(ctx context.Context) error {
	if p.isStopped() {
		return ErrStopped
	}
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()
	if p.isStopped() {
		return ErrStopped
	}

	ctx, cancel := p.bindStop(ctx)
	defer cancel()

	ctx, span := otel.Tracer("tutor-chat/poller").Start(ctx, "poller.sync")
	defer span.End()
	span.SetAttributes(attribute.Int("conversation.id", p.conv.ID), attribute.String("conversation.kind", string(p.conv.Kind)))

	attempts := 0
	op := func() error {
		attempts++
		err := p.fetch(ctx)
		if err != nil && !apiclient.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.status.Retrying()
		p.cfg.Logger.Printf("poller: sync failed conversation_id=%d attempt=%d retry_in=%s err=%v", p.conv.ID, attempts, wait, err)
	}

	policy := backoff.WithContext(retry.SyncPolicy(p.cfg.RetryBase, p.cfg.MaxAttempts), ctx)
	err := backoff.RetryNotify(op, policy, notify)
	span.SetAttributes(attribute.Int("sync.attempts", attempts))
	if err == nil {
		observeSync("ok")
		p.setPaused(false)
		return nil
	}

	switch {
	case errors.Is(err, ErrStopped), ctx.Err() != nil:
		return err
	case apiclient.IsUnauthorized(err):
		observeSync("unauthorized")
		p.terminate(func() {
			p.cfg.Logger.Printf("poller: session expired conversation_id=%d", p.conv.ID)
			if p.hooks.SessionExpired != nil {
				p.hooks.SessionExpired()
			}
		})
	case apiclient.IsGone(err):
		observeSync("gone")
		p.terminate(func() {
			p.cfg.Logger.Printf("poller: conversation gone conversation_id=%d err=%v", p.conv.ID, err)
			if p.hooks.ConversationClosed != nil {
				p.hooks.ConversationClosed(p.conv, err)
			}
			if p.hooks.RefreshList != nil {
				p.hooks.RefreshList()
			}
		})
	case apiclient.IsTransient(err):
		observeSync("exhausted")
		p.status.Exhausted()
		p.setPaused(true)
		p.cfg.Logger.Printf("poller: giving up conversation_id=%d attempts=%d err=%v", p.conv.ID, attempts, err)
		if p.hooks.Error != nil {
			p.hooks.Error(err)
		}
	default:
		observeSync("error")
		if p.hooks.Error != nil {
			p.hooks.Error(err)
		}
	}
	return err
}

// Reconnect re-arms polling after the retry cap was reached.
func (p *Poller) Reconnect() {
	if p.isStopped() {
		return
	}
	p.status.Reconnect()
	p.setPaused(false)
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Stop ends the poll loop. No fetch starts afterwards.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.done)
	})
}

// Stopped reports whether the poller has been stopped.
func (p *Poller) Stopped() bool {
	return p.isStopped()
}

// Done is closed when the poller stops.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) fetch(ctx context.Context) error {
	var (
		msgs   []models.Message
		pinned []models.Message
	)
	if p.conv.IsGroup() {
		var err error
		if msgs, err = p.api.GroupMessages(ctx, p.conv.ID); err != nil {
			return err
		}
		if pinned, err = p.api.PinnedMessages(ctx, p.conv.ID); err != nil {
			return err
		}
	} else {
		raw, err := p.api.TutorMessages(ctx, p.conv.ID)
		if err != nil {
			return err
		}
		msgs = make([]models.Message, 0, len(raw))
		for _, r := range raw {
			msgs = append(msgs, r.ToMessage())
		}
	}

	if p.isStopped() {
		return backoff.Permanent(ErrStopped)
	}
	if p.index != nil {
		p.index.Rebuild(msgs)
	}
	if p.conv.IsGroup() {
		p.store.ReplaceAll(msgs, pinned, p.cfg.Now())
	} else {
		p.store.Replace(msgs, p.cfg.Now())
	}
	p.status.Succeeded()
	return nil
}

func (p *Poller) terminate(signal func()) {
	p.mu.Lock()
	already := p.stopped
	p.mu.Unlock()
	if already {
		return
	}
	p.Stop()
	signal()
}

func (p *Poller) bindStop(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-p.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (p *Poller) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *Poller) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Poller) setPaused(v bool) {
	p.mu.Lock()
	p.paused = v
	p.mu.Unlock()
}
