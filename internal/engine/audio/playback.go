package audio

import (
	"context"
	"log"
	"sync"
	"time"
)

// Track is one loaded voice message.
type Track interface {
	Play() error
	Stop()
	Position() time.Duration
	// Duration is zero while unknown.
	Duration() time.Duration
	// Done delivers nil when playback reaches the end, or the failure.
	Done() <-chan error
}

// Backend loads tracks and probes their metadata.
type Backend interface {
	Open(ctx context.Context, url string) (Track, error)
	// Probe fetches only metadata and reports the duration.
	Probe(ctx context.Context, url string) (time.Duration, error)
}

// PlaybackState is the read-only view of the player.
type PlaybackState struct {
	ActiveID  int
	Playing   bool
	Progress  map[int]float64
	Durations map[int]time.Duration
}

// PlayerConfig tunes a Player.
type PlayerConfig struct {
	SampleEvery time.Duration
	OnError     func(messageID int, err *MediaError)
	Logger      *log.Logger
}

type playback struct {
	id       int
	track    Track
	stopOnce sync.Once
	stop     chan struct{}
}

func (p *playback) halt() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.track.Stop()
	})
}

// Player plays at most one voice message at a time.
type Player struct {
	backend Backend
	sample  time.Duration
	onError func(int, *MediaError)
	logger  *log.Logger

	mu        sync.Mutex
	active    *playback
	progress  map[int]float64
	durations map[int]time.Duration
}

// NewPlayer constructs a Player.
func NewPlayer(backend Backend, cfg PlayerConfig) *Player {
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Player{
		backend:   backend,
		sample:    cfg.SampleEvery,
		onError:   cfg.OnError,
		logger:    cfg.Logger,
		progress:  map[int]float64{},
		durations: map[int]time.Duration{},
	}
}

// Play toggles messageID: a second call on the playing id stops it and
// resets its progress; a call on another id stops the current one first.
func (p *Player) Play(ctx context.Context, messageID int, url string) error {
	p.mu.Lock()
	prev := p.active
	p.active = nil
	if prev != nil {
		p.progress[prev.id] = 0
	}
	p.mu.Unlock()

	if prev != nil {
		prev.halt()
		if prev.id == messageID {
			return nil
		}
	}

	track, err := p.backend.Open(ctx, url)
	if err != nil {
		return p.fail(messageID, err)
	}
	if err := track.Play(); err != nil {
		track.Stop()
		return p.fail(messageID, err)
	}

	pb := &playback{id: messageID, track: track, stop: make(chan struct{})}
	p.mu.Lock()
	displaced := p.active
	p.active = pb
	p.progress[messageID] = 0
	if d := track.Duration(); d > 0 {
		p.durations[messageID] = d
	}
	if displaced != nil {
		p.progress[displaced.id] = 0
	}
	p.mu.Unlock()
	if displaced != nil {
		displaced.halt()
	}

	go p.watch(pb)
	return nil
}

// Stop halts whatever is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.active
	p.active = nil
	if pb != nil {
		p.progress[pb.id] = 0
	}
	p.mu.Unlock()
	if pb != nil {
		pb.halt()
	}
}

// PreloadDuration probes the duration of a voice message once and caches it.
func (p *Player) PreloadDuration(ctx context.Context, messageID int, url string) (time.Duration, error) {
	p.mu.Lock()
	if d, ok := p.durations[messageID]; ok {
		p.mu.Unlock()
		return d, nil
	}
	p.mu.Unlock()

	d, err := p.backend.Probe(ctx, url)
	if err != nil {
		return 0, Classify("probe", err)
	}
	p.mu.Lock()
	p.durations[messageID] = d
	p.mu.Unlock()
	return d, nil
}

// Active returns the playing message id.
func (p *Player) Active() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return 0, false
	}
	return p.active.id, true
}

// Progress returns the 0–100 progress of messageID.
func (p *Player) Progress(messageID int) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress[messageID]
}

// State returns a copy of the player state.
func (p *Player) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := PlaybackState{
		Progress:  make(map[int]float64, len(p.progress)),
		Durations: make(map[int]time.Duration, len(p.durations)),
	}
	if p.active != nil {
		st.ActiveID = p.active.id
		st.Playing = true
	}
	for k, v := range p.progress {
		st.Progress[k] = v
	}
	for k, v := range p.durations {
		st.Durations[k] = v
	}
	return st
}

func (p *Player) watch(pb *playback) {
	ticker := time.NewTicker(p.sample)
	defer ticker.Stop()
	for {
		select {
		case <-pb.stop:
			return
		case err := <-pb.track.Done():
			p.finish(pb, err)
			return
		case <-ticker.C:
			p.sampleProgress(pb)
		}
	}
}

func (p *Player) sampleProgress(pb *playback) {
	pos, dur := pb.track.Position(), pb.track.Duration()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != pb {
		return
	}
	if dur <= 0 {
		dur = p.durations[pb.id]
	} else {
		p.durations[pb.id] = dur
	}
	if dur <= 0 {
		return
	}
	pct := float64(pos) / float64(dur) * 100
	if pct > 100 {
		pct = 100
	}
	p.progress[pb.id] = pct
}

func (p *Player) finish(pb *playback, err error) {
	p.mu.Lock()
	current := p.active == pb
	if current {
		p.active = nil
		p.progress[pb.id] = 0
	}
	p.mu.Unlock()
	pb.halt()

	if err != nil && current {
		_ = p.fail(pb.id, err)
	}
}

func (p *Player) fail(messageID int, err error) error {
	me := Classify("play", err)
	p.mu.Lock()
	if p.active != nil && p.active.id == messageID {
		p.active = nil
	}
	p.progress[messageID] = 0
	p.mu.Unlock()

	p.logger.Printf("audio: playback failed message_id=%d kind=%s err=%v", messageID, me.Kind, me.Err)
	if p.onError != nil {
		p.onError(messageID, me)
	}
	return me
}
