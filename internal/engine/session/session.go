// Package session runs one open conversation: it owns the poll loop, the
// send pipeline, audio capture and playback, reactions, pins and search, and
// releases all of them when the conversation closes.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"tutor-chat/internal/engine/apiclient"
	"tutor-chat/internal/engine/audio"
	"tutor-chat/internal/engine/connection"
	"tutor-chat/internal/engine/pins"
	"tutor-chat/internal/engine/poller"
	"tutor-chat/internal/engine/reactions"
	"tutor-chat/internal/engine/search"
	"tutor-chat/internal/engine/sender"
	"tutor-chat/internal/engine/store"
	"tutor-chat/internal/models"
)

var (
	ErrClosed       = errors.New("conversation is closed")
	ErrNoAudio      = errors.New("message has no audio")
	ErrDraftIsEmpty = errors.New("nothing to send")
)

// API is everything the engine needs from the transport.
type API interface {
	poller.API
	sender.API
	sender.EditAPI
	sender.Directory
	reactions.API
	pins.API
}

// Hooks are the signals a session raises to its host.
type Hooks struct {
	// SessionExpired fires once on a 401; the host should sign out.
	SessionExpired func()
	// ConversationClosed fires once on a 403 or 404.
	ConversationClosed func(conv models.Conversation, err error)
	// RefreshList asks the host to reload its conversation list.
	RefreshList func()
	// Error fires once per exhausted sync cycle.
	Error func(err error)
	// Focus asks the view to scroll to a search hit.
	Focus func(messageID int)
	// MediaError reports playback failures.
	MediaError func(messageID int, err *audio.MediaError)
}

// Config tunes a Session.
type Config struct {
	UserID int
	// MediaBaseURL prefixes relative attachment URLs.
	MediaBaseURL string
	Poll         poller.Config
	Send         sender.Config
	Highlight    time.Duration
	Recorder     audio.RecorderConfig
	Player       audio.PlayerConfig
	Logger       *log.Logger
}

// Draft is the compose box state.
type Draft struct {
	Text string
	File *apiclient.Attachment
}

// Session is one open conversation.
type Session struct {
	conv   models.Conversation
	cfg    Config
	hooks  Hooks
	logger *log.Logger

	store     *store.Store
	status    *connection.Machine
	index     *reactions.Index
	poller    *poller.Poller
	pipeline  *sender.Pipeline
	editor    *sender.Editor
	toggler   *reactions.Toggler
	pins      *pins.Manager
	navigator *search.Navigator
	recorder  *audio.Recorder
	player    *audio.Player

	cancel  context.CancelFunc
	runDone chan struct{}

	mu       sync.Mutex
	draft    Draft
	released bool
}

// New assembles a session for conv. mic and out may be nil.
func New(api API, conv models.Conversation, mic audio.Microphone, out audio.Backend, cfg Config, hooks Hooks) *Session {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if mic == nil {
		mic = audio.NoMicrophone{}
	}
	if out == nil {
		out = audio.NoOutput{}
	}
	s := &Session{conv: conv, cfg: cfg, hooks: hooks, logger: cfg.Logger}

	s.store = store.New()
	s.status = connection.NewMachine()
	s.index = reactions.NewIndex(cfg.UserID)

	pollCfg := cfg.Poll
	if pollCfg.Logger == nil {
		pollCfg.Logger = cfg.Logger
	}
	s.poller = poller.New(api, conv, s.store, s.index, s.status, pollCfg, poller.Hooks{
		SessionExpired:     s.onSessionExpired,
		ConversationClosed: s.onConversationClosed,
		RefreshList:        hooks.RefreshList,
		Error:              hooks.Error,
	})

	sendCfg := cfg.Send
	if sendCfg.Logger == nil {
		sendCfg.Logger = cfg.Logger
	}
	var receiver *sender.ReceiverResolver
	if !conv.IsGroup() {
		receiver = sender.NewReceiverResolver(conv, cfg.UserID, api)
	}
	s.pipeline = sender.NewPipeline(api, conv, receiver, s.poller, sendCfg)
	s.editor = sender.NewEditor(api, conv, cfg.UserID, s.store, s.poller, cfg.Logger)
	s.toggler = reactions.NewToggler(api, conv, s.index, s.poller, cfg.Logger)
	s.pins = pins.NewManager(api, conv, cfg.UserID, s.store, s.poller, cfg.Logger)
	s.navigator = search.NewNavigator(cfg.Highlight, hooks.Focus)

	recCfg := cfg.Recorder
	if recCfg.Logger == nil {
		recCfg.Logger = cfg.Logger
	}
	s.recorder = audio.NewRecorder(mic, recCfg)

	playCfg := cfg.Player
	if playCfg.Logger == nil {
		playCfg.Logger = cfg.Logger
	}
	if playCfg.OnError == nil {
		playCfg.OnError = hooks.MediaError
	}
	s.player = audio.NewPlayer(out, playCfg)
	return s
}

// Start launches the poll loop. It returns immediately.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.released || s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return
	}
	s.cancel = cancel
	s.runDone = make(chan struct{})
	done := s.runDone
	s.mu.Unlock()

	s.logger.Printf("session: opened conversation_id=%d kind=%s", s.conv.ID, s.conv.Kind)
	go func() {
		defer close(done)
		_ = s.poller.Run(ctx)
	}()
}

// Close releases every resource and waits for the poll loop to exit.
func (s *Session) Close() {
	s.release("closed")
	s.mu.Lock()
	done := s.runDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Closed reports whether the session has been released.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// release tears everything down without waiting, so it is safe to call
// from inside the poll loop.
func (s *Session) release(reason string) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	cancel := s.cancel
	s.mu.Unlock()

	s.poller.Stop()
	if cancel != nil {
		cancel()
	}
	s.recorder.Abort()
	s.player.Stop()
	s.navigator.Close()
	s.store.Reset()
	s.logger.Printf("session: released conversation_id=%d reason=%s", s.conv.ID, reason)
}

func (s *Session) onSessionExpired() {
	s.release("unauthorized")
	if s.hooks.SessionExpired != nil {
		s.hooks.SessionExpired()
	}
}

func (s *Session) onConversationClosed(conv models.Conversation, err error) {
	s.release("gone")
	if s.hooks.ConversationClosed != nil {
		s.hooks.ConversationClosed(conv, err)
	}
}

func (s *Session) guard() error {
	if s.Closed() {
		return ErrClosed
	}
	return nil
}

// Conversation returns the conversation reference.
func (s *Session) Conversation() models.Conversation { return s.conv }

// Messages returns the current message snapshot.
func (s *Session) Messages() []models.Message { return s.store.Messages() }

// Pinned returns the pinned messages.
func (s *Session) Pinned() []models.Message { return s.pins.Pinned() }

// Snapshot returns messages, pinned and sync time together.
func (s *Session) Snapshot() store.Snapshot { return s.store.Snapshot() }

// Subscribe registers fn for every store change.
func (s *Session) Subscribe(fn func(store.Snapshot)) func() { return s.store.Subscribe(fn) }

// Reactions returns the grouped reactions of one message.
func (s *Session) Reactions(messageID int) []reactions.Group { return s.index.Groups(messageID) }

// Status returns the connection status.
func (s *Session) Status() connection.Status { return s.status.Status() }

// ObserveStatus registers fn for connection status changes.
func (s *Session) ObserveStatus(fn func(connection.Status)) { s.status.Observe(fn) }

// Cursor returns the search state.
func (s *Session) Cursor() search.Cursor { return s.navigator.Cursor() }

// Recording returns the capture state and elapsed time.
func (s *Session) Recording() (audio.State, time.Duration) {
	if sess := s.recorder.Session(); sess != nil {
		return audio.StateRecording, sess.Elapsed()
	}
	return audio.StateIdle, 0
}

// Playback returns the player state.
func (s *Session) Playback() audio.PlaybackState { return s.player.State() }

// CanPin reports whether the current user may pin in this conversation.
func (s *Session) CanPin() bool { return s.pins.CanPin() }

// CanModify reports whether the current user may edit or delete msg.
func (s *Session) CanModify(msg models.Message) bool { return s.conv.CanModify(s.cfg.UserID, msg) }

// Draft returns the compose box state.
func (s *Session) Draft() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraftText replaces the compose text.
func (s *Session) SetDraftText(text string) {
	s.mu.Lock()
	s.draft.Text = text
	s.mu.Unlock()
}

// AttachFile sets the pending attachment.
func (s *Session) AttachFile(file apiclient.Attachment) {
	s.mu.Lock()
	s.draft.File = &file
	s.mu.Unlock()
}

// ClearDraft empties the compose box.
func (s *Session) ClearDraft() {
	s.mu.Lock()
	s.draft = Draft{}
	s.mu.Unlock()
}

// SendDraft sends the pending attachment, or the text when there is none.
// The draft is cleared only on success.
func (s *Session) SendDraft(ctx context.Context) (models.Message, error) {
	draft := s.Draft()
	var out sender.Outgoing
	switch {
	case draft.File != nil && strings.HasPrefix(draft.File.MIME, "image/"):
		out = sender.Image{File: *draft.File, Caption: draft.Text}
	case draft.File != nil:
		out = sender.File{File: *draft.File, Caption: draft.Text}
	case strings.TrimSpace(draft.Text) != "":
		out = sender.Text{Content: draft.Text}
	default:
		return models.Message{}, ErrDraftIsEmpty
	}

	msg, err := s.Send(ctx, out)
	if err != nil {
		return models.Message{}, err
	}
	s.mu.Lock()
	if s.draft.Text == draft.Text && s.draft.File == draft.File {
		s.draft = Draft{}
	}
	s.mu.Unlock()
	return msg, nil
}

// Send delivers out through the pipeline.
func (s *Session) Send(ctx context.Context, out sender.Outgoing) (models.Message, error) {
	if err := s.guard(); err != nil {
		return models.Message{}, err
	}
	return s.pipeline.Send(ctx, out)
}

// StartRecording acquires the microphone. It is a no-op while recording.
func (s *Session) StartRecording(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := s.recorder.Start(ctx); err != nil {
		return err
	}
	// Close may have aborted the recorder before Start took it.
	if s.Closed() {
		s.recorder.Abort()
		return ErrClosed
	}
	return nil
}

// CancelRecording discards the live recording.
func (s *Session) CancelRecording() {
	s.recorder.Abort()
}

// StopRecordingAndSend finalizes the recording and sends it as a voice message.
func (s *Session) StopRecordingAndSend(ctx context.Context) (models.Message, error) {
	rec, err := s.recorder.Stop()
	if err != nil {
		return models.Message{}, err
	}
	return s.Send(ctx, sender.Voice{Data: rec.Data, MIME: rec.MIME, Duration: rec.Duration})
}

// Play toggles playback of a voice message.
func (s *Session) Play(ctx context.Context, messageID int) error {
	if err := s.guard(); err != nil {
		return err
	}
	url, err := s.audioURL(messageID)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, messageID, url)
}

// StopPlayback halts whatever is playing.
func (s *Session) StopPlayback() {
	s.player.Stop()
}

// PreloadDurations probes the duration of every voice message once.
func (s *Session) PreloadDurations(ctx context.Context) {
	for _, msg := range s.store.Messages() {
		if msg.Type != models.MessageVoice || msg.AudioURL == nil {
			continue
		}
		if _, err := s.player.PreloadDuration(ctx, msg.ID, s.resolve(*msg.AudioURL)); err != nil {
			s.logger.Printf("session: duration probe failed message_id=%d err=%v", msg.ID, err)
		}
	}
}

func (s *Session) audioURL(messageID int) (string, error) {
	msg, ok := s.store.Get(messageID)
	if !ok || msg.AudioURL == nil || *msg.AudioURL == "" {
		return "", ErrNoAudio
	}
	return s.resolve(*msg.AudioURL), nil
}

func (s *Session) resolve(url string) string {
	if strings.HasPrefix(url, "/") && s.cfg.MediaBaseURL != "" {
		return strings.TrimRight(s.cfg.MediaBaseURL, "/") + url
	}
	return url
}

// React toggles the current user's emoji on a message.
func (s *Session) React(ctx context.Context, messageID int, emoji string) (models.ToggleResult, error) {
	if err := s.guard(); err != nil {
		return models.ToggleResult{}, err
	}
	return s.toggler.Toggle(ctx, messageID, emoji)
}

// Pin pins a message.
func (s *Session) Pin(ctx context.Context, messageID int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.pins.Pin(ctx, messageID)
}

// Unpin unpins a message.
func (s *Session) Unpin(ctx context.Context, messageID int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.pins.Unpin(ctx, messageID)
}

// Edit replaces a message's content.
func (s *Session) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	if err := s.guard(); err != nil {
		return models.Message{}, err
	}
	return s.editor.Edit(ctx, messageID, content)
}

// Delete removes a message.
func (s *Session) Delete(ctx context.Context, messageID int) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.editor.Delete(ctx, messageID)
}

// Search runs a query over the current snapshot and focuses the first hit.
func (s *Session) Search(query string) []int {
	return s.navigator.Search(query, s.store.Messages())
}

// NextResult moves the search cursor forward, wrapping.
func (s *Session) NextResult() (int, bool) { return s.navigator.Next() }

// PreviousResult moves the search cursor back, wrapping.
func (s *Session) PreviousResult() (int, bool) { return s.navigator.Previous() }

// ClearSearch drops the results.
func (s *Session) ClearSearch() { s.navigator.Clear() }

// Sync forces a fetch now.
func (s *Session) Sync(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	return s.poller.Sync(ctx)
}

// Reconnect re-arms polling after a disconnect.
func (s *Session) Reconnect() {
	if s.Closed() {
		return
	}
	s.poller.Reconnect()
}
