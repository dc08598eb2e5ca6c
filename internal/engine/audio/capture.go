// Package audio owns the exclusive microphone session and the single-slot
// voice message player.
package audio

import (
	"bytes"
	"context"
	"log"
	"sync"
	"time"
)

// DefaultEncodings lists capture formats in descending preference.
var DefaultEncodings = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/mp4",
	"audio/mpeg",
}

// State is the recorder state.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// Microphone is the capture device.
type Microphone interface {
	Supports(mimeType string) bool
	Open(ctx context.Context, mimeType string) (Stream, error)
}

// Stream is an open microphone handle. Chunks is closed once the stream
// has been closed and all buffered data delivered.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// Recording is a finished capture.
type Recording struct {
	Data     []byte
	MIME     string
	Duration time.Duration
}

// Session is the single live recording.
type Session struct {
	MIME      string
	StartedAt time.Time

	stream    Stream
	mu        sync.Mutex
	buf       bytes.Buffer
	ticks     int
	collected chan struct{}
	stopTick  chan struct{}
}

// Elapsed returns the whole seconds counted so far.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.ticks) * time.Second
}

// RecorderConfig tunes a Recorder.
type RecorderConfig struct {
	Encodings []string
	// Tick is the duration counter period; one tick counts one second.
	Tick   time.Duration
	Logger *log.Logger
}

// Recorder allows at most one Session at a time.
type Recorder struct {
	mic       Microphone
	encodings []string
	tick      time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	session *Session
}

// NewRecorder constructs a Recorder.
func NewRecorder(mic Microphone, cfg RecorderConfig) *Recorder {
	if len(cfg.Encodings) == 0 {
		cfg.Encodings = DefaultEncodings
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Recorder{mic: mic, encodings: cfg.Encodings, tick: cfg.Tick, logger: cfg.Logger}
}

// SelectEncoding returns the first format mic supports.
func SelectEncoding(mic Microphone, prefs []string) (string, error) {
	for _, mimeType := range prefs {
		if mic.Supports(mimeType) {
			return mimeType, nil
		}
	}
	return "", ErrNoEncoding
}

// Start opens the microphone and begins buffering. It is a no-op while a
// session is already live.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return nil
	}

	mimeType, err := SelectEncoding(r.mic, r.encodings)
	if err != nil {
		return Classify("record", err)
	}
	stream, err := r.mic.Open(ctx, mimeType)
	if err != nil {
		return Classify("record", err)
	}

	s := &Session{
		MIME:      mimeType,
		StartedAt: time.Now(),
		stream:    stream,
		collected: make(chan struct{}),
		stopTick:  make(chan struct{}),
	}
	go s.collect()
	go s.count(r.tick)
	r.session = s
	r.logger.Printf("audio: recording started mime=%s", mimeType)
	return nil
}

// Stop finalizes the live session into a Recording and releases the stream.
func (r *Recorder) Stop() (Recording, error) {
	s := r.take()
	if s == nil {
		return Recording{}, ErrNotRecording
	}
	s.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, s.buf.Len())
	copy(data, s.buf.Bytes())
	rec := Recording{Data: data, MIME: s.MIME, Duration: time.Duration(s.ticks) * time.Second}
	r.logger.Printf("audio: recording stopped mime=%s bytes=%d duration=%s", rec.MIME, len(rec.Data), rec.Duration)
	return rec, nil
}

// Abort releases the live session and discards its data.
func (r *Recorder) Abort() {
	if s := r.take(); s != nil {
		s.release()
		r.logger.Printf("audio: recording aborted")
	}
}

// State reports whether a session is live.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return StateRecording
	}
	return StateIdle
}

// Session returns the live session, or nil.
func (r *Recorder) Session() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

func (r *Recorder) take() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session
	r.session = nil
	return s
}

func (s *Session) collect() {
	defer close(s.collected)
	for chunk := range s.stream.Chunks() {
		s.mu.Lock()
		s.buf.Write(chunk)
		s.mu.Unlock()
	}
}

func (s *Session) count(tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-s.stopTick:
			return
		case <-t.C:
			s.mu.Lock()
			s.ticks++
			s.mu.Unlock()
		}
	}
}

func (s *Session) release() {
	close(s.stopTick)
	_ = s.stream.Close()
	<-s.collected
}
