package player

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"basemusic/core/audio"
	"basemusic/logger"
	"basemusic/model"
)

// EventType names what changed in the player.
type EventType string

const (
	EventTrackChange EventType = "track_change"
	EventPlay        EventType = "play"
	EventPause       EventType = "pause"
	EventStop        EventType = "stop"
	EventSeek        EventType = "seek"
	EventEnded       EventType = "ended"
	EventTimeUpdate  EventType = "time_update"
	EventSettings    EventType = "settings" // volume, shuffle, repeat
)

// Event is delivered to subscribers after every state change. Seq grows
// with every state change; delivery order across goroutines is not
// guaranteed, so a subscriber that cares drops events older than the last
// one it saw.
type Event struct {
	Seq   uint64              `json:"seq"`
	Type  EventType           `json:"type"`
	State model.PlaybackState `json:"state"`
}

// Listener receives events. It runs outside the engine lock and may call
// back into the engine.
type Listener func(Event)

// Engine is the transport state machine: at most one loaded track, played
// through a single audio.Media.
type Engine struct {
	mu sync.Mutex

	media  audio.Media
	tracks []model.Track
	state  model.PlaybackState
	// gen identifies the current media load; callbacks of older loads are dropped.
	gen uint64
	seq uint64
	// loading is set while a load reads the media outside mu. autoplay
	// records whether the track should start once it is loaded.
	loading  bool
	autoplay bool

	// loadMu keeps media loads in call order.
	loadMu sync.Mutex

	loadTimeout time.Duration
	intn        func(n int) int

	listenersMu sync.RWMutex
	listeners   []Listener
}

// Option customises an Engine.
type Option func(*Engine)

// WithRand sets the source of shuffle picks.
func WithRand(intn func(n int) int) Option {
	return func(e *Engine) { e.intn = intn }
}

// WithLoadTimeout bounds how long loading a track's media may take.
func WithLoadTimeout(d time.Duration) Option {
	return func(e *Engine) { e.loadTimeout = d }
}

// NewEngine creates a stopped engine over media.
func NewEngine(media audio.Media, opts ...Option) *Engine {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	e := &Engine{
		media:       media,
		loadTimeout: 5 * time.Second,
		intn:        r.Intn,
		state: model.PlaybackState{
			Volume: 1,
			Repeat: model.RepeatNone,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe registers l for all future events.
func (e *Engine) Subscribe(l Listener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, l)
}

func (e *Engine) emit(ev Event) {
	e.listenersMu.RLock()
	ls := append([]Listener(nil), e.listeners...)
	e.listenersMu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}

// snapshotLocked builds an event from the current state. Caller holds e.mu.
func (e *Engine) snapshotLocked(t EventType) Event {
	e.seq++
	return Event{Seq: e.seq, Type: t, State: e.state.Clone()}
}

// positionLocked reads the media position, bounded by a known duration.
func (e *Engine) positionLocked() float64 {
	return e.bound(e.media.Position())
}

// bound keeps t inside [0, duration]. Tracks of unknown length are only
// bounded below.
func (e *Engine) bound(t float64) float64 {
	if e.state.Duration <= 0 {
		return nonNegative(t)
	}
	return clamp(t, 0, e.state.Duration)
}

// SetTracks replaces the list used by Next and Previous.
func (e *Engine) SetTracks(tracks []model.Track) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracks = append([]model.Track(nil), tracks...)
}

// Tracks returns the navigation list.
func (e *Engine) Tracks() []model.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Track(nil), e.tracks...)
}

// State returns a copy of the current playback state. While playing, the
// position is read from the media.
func (e *Engine) State() model.PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.IsPlaying {
		e.state.CurrentTime = e.positionLocked()
	}
	return e.state.Clone()
}

// Play loads and starts track, or resumes the current track when track is nil.
func (e *Engine) Play(track *model.Track) {
	if track != nil {
		e.load(*track)
		return
	}
	e.mu.Lock()
	if e.state.CurrentTrack == nil {
		e.mu.Unlock()
		return
	}
	if e.loading {
		e.autoplay = true
		e.mu.Unlock()
		return
	}
	ev := e.startLocked(EventPlay)
	e.mu.Unlock()
	e.emit(ev)
}

// load replaces the current track and starts it. A media failure leaves the
// track selected with zero position and duration, not playing.
func (e *Engine) load(track model.Track) {
	if ev, ok := e.loadMedia(track); ok {
		e.emit(ev)
	}
}

// loadMedia loads the media without holding mu. It reports false when a
// Stop superseded the load.
func (e *Engine) loadMedia(track model.Track) (Event, bool) {
	e.loadMu.Lock()
	defer e.loadMu.Unlock()

	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.media.Pause()
	t := track
	e.state.CurrentTrack = &t
	e.state.CurrentTime = 0
	e.state.Duration = 0
	e.state.IsPlaying = false
	e.loading = true
	e.autoplay = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.loadTimeout)
	// Duration is read back after Load; OnDuration would race the state update.
	err := e.media.Load(ctx, track.URL, audio.Handlers{
		OnTimeUpdate: func(s float64) { e.onTimeUpdate(gen, s) },
		OnEnded:      func() { e.onEnded(gen) },
	})
	cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		if err == nil {
			_ = e.media.Close()
		}
		return Event{}, false
	}
	e.loading = false
	if err != nil {
		logger.Warn("failed to load track",
			logger.String("trackId", track.ID),
			logger.String("url", track.URL),
			logger.ErrorField(err))
		return e.snapshotLocked(EventTrackChange), true
	}
	e.state.Duration = nonNegative(e.media.Duration())
	e.media.SetVolume(e.state.Volume)
	if e.autoplay {
		e.startLocked(EventPlay)
	}
	return e.snapshotLocked(EventTrackChange), true
}

func (e *Engine) startLocked(t EventType) Event {
	if err := e.media.Play(); err != nil {
		logger.Warn("playback did not start", logger.ErrorField(err))
		e.state.IsPlaying = false
		return e.snapshotLocked(t)
	}
	e.state.IsPlaying = true
	return e.snapshotLocked(t)
}

// Pause stops time from advancing; the track stays loaded.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.state.CurrentTrack == nil {
		e.mu.Unlock()
		return
	}
	e.autoplay = false
	e.media.Pause()
	e.state.IsPlaying = false
	e.state.CurrentTime = e.positionLocked()
	ev := e.snapshotLocked(EventPause)
	e.mu.Unlock()
	e.emit(ev)
}

// TogglePlayPause flips between playing and paused when a track is loaded.
func (e *Engine) TogglePlayPause() {
	st := e.State()
	if st.CurrentTrack == nil {
		return
	}
	if st.IsPlaying {
		e.Pause()
	} else {
		e.Play(nil)
	}
}

// Stop unloads the current track and releases the media resource.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.gen++
	e.loading = false
	e.autoplay = false
	e.media.Pause()
	if err := e.media.Close(); err != nil {
		logger.Warn("failed to release media", logger.ErrorField(err))
	}
	e.state.CurrentTrack = nil
	e.state.IsPlaying = false
	e.state.CurrentTime = 0
	e.state.Duration = 0
	ev := e.snapshotLocked(EventStop)
	e.mu.Unlock()
	e.emit(ev)
}

// Seek moves to t seconds, clamped into [0, duration]. The new position is
// reported immediately without waiting for the media.
func (e *Engine) Seek(t float64) {
	e.mu.Lock()
	if e.state.CurrentTrack == nil {
		e.mu.Unlock()
		return
	}
	t = e.bound(t)
	e.media.Seek(t)
	e.state.CurrentTime = t
	ev := e.snapshotLocked(EventSeek)
	e.mu.Unlock()
	e.emit(ev)
}

// SetVolume sets the output volume, clamped to [0, 1].
func (e *Engine) SetVolume(v float64) {
	e.mu.Lock()
	e.state.Volume = clamp(v, 0, 1)
	e.media.SetVolume(e.state.Volume)
	ev := e.snapshotLocked(EventSettings)
	e.mu.Unlock()
	e.emit(ev)
}

// ToggleShuffle flips shuffle mode and returns the new value.
func (e *Engine) ToggleShuffle() bool {
	e.mu.Lock()
	e.state.Shuffle = !e.state.Shuffle
	on := e.state.Shuffle
	ev := e.snapshotLocked(EventSettings)
	e.mu.Unlock()
	e.emit(ev)
	return on
}

// ToggleRepeat cycles none -> all -> one -> none and returns the new mode.
func (e *Engine) ToggleRepeat() model.RepeatMode {
	e.mu.Lock()
	e.state.Repeat = e.state.Repeat.Next()
	mode := e.state.Repeat
	ev := e.snapshotLocked(EventSettings)
	e.mu.Unlock()
	e.emit(ev)
	return mode
}

// Next moves to the following track, wrapping at the end. With shuffle on
// any track may be picked, including the current one.
func (e *Engine) Next() { e.step(1) }

// Previous moves to the preceding track, wrapping at the start.
func (e *Engine) Previous() { e.step(-1) }

func (e *Engine) step(dir int) {
	e.mu.Lock()
	if e.state.CurrentTrack == nil || len(e.tracks) == 0 {
		e.mu.Unlock()
		return
	}
	track := e.tracks[e.targetIndexLocked(dir)]
	e.mu.Unlock()
	e.load(track)
}

func (e *Engine) targetIndexLocked(dir int) int {
	n := len(e.tracks)
	if e.state.Shuffle {
		return e.intn(n)
	}
	cur := -1
	for i, t := range e.tracks {
		if t.ID == e.state.CurrentTrack.ID {
			cur = i
			break
		}
	}
	// An unknown current track behaves like index -1, as if before the start.
	return ((cur+dir)%n + n) % n
}

func (e *Engine) onTimeUpdate(gen uint64, s float64) {
	e.mu.Lock()
	if gen != e.gen || e.state.CurrentTrack == nil {
		e.mu.Unlock()
		return
	}
	e.state.CurrentTime = e.bound(s)
	ev := e.snapshotLocked(EventTimeUpdate)
	e.mu.Unlock()
	e.emit(ev)
}

// onEnded applies the repeat policy at the natural end of a track.
func (e *Engine) onEnded(gen uint64) {
	e.mu.Lock()
	if gen != e.gen || e.state.CurrentTrack == nil {
		e.mu.Unlock()
		return
	}

	switch e.state.Repeat {
	case model.RepeatOne:
		e.media.Seek(0)
		e.state.CurrentTime = 0
		ev := e.startLocked(EventPlay)
		e.mu.Unlock()
		e.emit(ev)
	case model.RepeatAll:
		e.mu.Unlock()
		e.Next()
	default:
		e.media.Pause()
		e.state.IsPlaying = false
		e.state.CurrentTime = e.state.Duration
		ev := e.snapshotLocked(EventEnded)
		e.mu.Unlock()
		e.emit(ev)
	}
}

func nonNegative(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
