package audio

import (
	"context"
	"errors"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrNotLoaded is returned by Play when no resource is loaded.
var ErrNotLoaded = errors.New("no audio loaded")

// Deck is a headless Media: it does not output sound, it keeps time. The
// position advances on the clock while playing and OnEnded fires when it
// reaches the probed duration.
type Deck struct {
	mu sync.Mutex

	clock  clock.Clock
	prober Prober
	// remote measures absolute http(s) URLs; nil treats them like local names.
	remote Prober
	// prefix is stripped from URLs before probing, e.g. "/audio/".
	prefix string

	loaded   bool
	url      string
	duration float64
	offset   float64   // position at startedAt
	started  time.Time // zero while paused
	volume   float64
	handlers Handlers
	timer    *clock.Timer
	gen      uint64
}

// DeckOption configures a Deck.
type DeckOption func(*Deck)

// WithRemoteProber measures absolute http(s) URLs with p.
func WithRemoteProber(p Prober) DeckOption {
	return func(d *Deck) { d.remote = p }
}

// NewDeck creates a deck that measures tracks with prober.
func NewDeck(clk clock.Clock, prober Prober, urlPrefix string, opts ...DeckOption) *Deck {
	if clk == nil {
		clk = clock.New()
	}
	d := &Deck{clock: clk, prober: prober, prefix: urlPrefix, volume: 1}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load measures the resource behind url. A stream of unknown length still
// loads, with duration 0, and plays until paused.
func (d *Deck) Load(ctx context.Context, url string, h Handlers) error {
	info, err := d.probe(ctx, url)
	if errors.Is(err, ErrUnknownLength) {
		info.Duration, err = 0, nil
	}

	d.mu.Lock()
	d.resetLocked()
	d.gen++
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.loaded = true
	d.url = url
	d.duration = info.Duration
	d.handlers = h
	onDuration := h.OnDuration
	d.mu.Unlock()

	if onDuration != nil {
		onDuration(info.Duration)
	}
	return nil
}

func (d *Deck) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return ErrNotLoaded
	}
	if !d.started.IsZero() {
		return nil
	}
	if d.duration > 0 && d.offset >= d.duration {
		d.offset = 0
	}
	d.started = d.clock.Now()
	d.scheduleEndLocked()
	return nil
}

func (d *Deck) Pause() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offset = d.positionLocked()
	d.started = time.Time{}
	d.stopTimerLocked()
}

func (d *Deck) Seek(seconds float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return
	}
	hi := d.duration
	if hi <= 0 {
		hi = math.MaxFloat64
	}
	d.offset = clamp(seconds, 0, hi)
	if !d.started.IsZero() {
		d.started = d.clock.Now()
		d.scheduleEndLocked()
	}
}

func (d *Deck) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = clamp(v, 0, 1)
}

// Volume reports the last volume set.
func (d *Deck) Volume() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

func (d *Deck) Position() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked()
}

func (d *Deck) Duration() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duration
}

// Playing reports whether the deck clock is running.
func (d *Deck) Playing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.started.IsZero()
}

func (d *Deck) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	d.gen++
	return nil
}

func (d *Deck) resetLocked() {
	d.stopTimerLocked()
	d.loaded = false
	d.url = ""
	d.duration = 0
	d.offset = 0
	d.started = time.Time{}
	d.handlers = Handlers{}
}

func (d *Deck) positionLocked() float64 {
	pos := d.offset
	if !d.started.IsZero() {
		pos += d.clock.Since(d.started).Seconds()
	}
	if d.duration > 0 && pos > d.duration {
		pos = d.duration
	}
	return pos
}

func (d *Deck) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// scheduleEndLocked arms the end-of-track timer. Unknown durations never end.
func (d *Deck) scheduleEndLocked() {
	d.stopTimerLocked()
	if d.duration <= 0 {
		return
	}
	remaining := time.Duration((d.duration - d.offset) * float64(time.Second))
	if remaining < 0 {
		remaining = 0
	}
	gen := d.gen
	d.timer = d.clock.AfterFunc(remaining, func() { d.finish(gen) })
}

func (d *Deck) finish(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.started.IsZero() {
		d.mu.Unlock()
		return
	}
	d.offset = d.duration
	d.started = time.Time{}
	d.timer = nil
	dur := d.duration
	onTime, onEnded := d.handlers.OnTimeUpdate, d.handlers.OnEnded
	d.mu.Unlock()

	if onTime != nil {
		onTime(dur)
	}
	if onEnded != nil {
		onEnded()
	}
}

func (d *Deck) probe(ctx context.Context, url string) (Info, error) {
	if d.remote != nil && isRemote(url) {
		return d.remote.Probe(ctx, url)
	}
	name := strings.TrimPrefix(url, d.prefix)
	return d.prober.Probe(ctx, unescapePath(name))
}

func isRemote(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}

// unescapePath turns "Panipat%20Ep_01.mp3" back into a file name.
func unescapePath(p string) string {
	if u, err := url.PathUnescape(p); err == nil {
		return u
	}
	return p
}

func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo { // NaN or below
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
