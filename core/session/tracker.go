package session

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"basemusic/core/player"
	"basemusic/logger"
	"basemusic/metrics"
	"basemusic/model"
)

// DefaultInterval is how often continuous playback is flushed.
const DefaultInterval = 5 * time.Second

// History receives play records.
type History interface {
	Add(ctx context.Context, track model.Track, playDuration float64, wallet string) model.PlayHistoryItem
	Update(ctx context.Context, trackID string, seconds float64, wallet string) bool
}

// Points receives listening time for a wallet.
type Points interface {
	AddPoints(ctx context.Context, wallet string, seconds float64) int
}

// Identity yields the connected wallet address, "" when none.
type Identity interface {
	Address() string
}

// Tracker turns playback state into history and points. Elapsed time is
// measured on the wall clock between flushes, not from the media position.
type Tracker struct {
	mu       sync.Mutex
	clock    clock.Clock
	history  History
	points   Points
	identity Identity
	interval time.Duration

	trackID  string
	lastSave time.Time // zero while not accumulating
	// recorded is set once the tracked track has a history entry. Entries
	// are only added when playback actually starts.
	recorded bool
	lastSeq  uint64
}

func NewTracker(clk clock.Clock, h History, p Points, id Identity, interval time.Duration) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{clock: clk, history: h, points: p, identity: id, interval: interval}
}

// Observe feeds an engine event into the tracker. It is meant to be passed
// to player.Engine.Subscribe. Events older than the last one seen are
// dropped.
func (t *Tracker) Observe(ev player.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.Seq != 0 {
		if ev.Seq <= t.lastSeq {
			return
		}
		t.lastSeq = ev.Seq
	}
	t.observeLocked(ev.State)
}

// ObserveState reacts to track changes, pauses and resumes.
func (t *Tracker) ObserveState(st model.PlaybackState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observeLocked(st)
}

func (t *Tracker) observeLocked(st model.PlaybackState) {
	ctx := context.Background()
	id := st.CurrentTrackID()
	if id != t.trackID {
		t.flushLocked(ctx, "track_change")
		t.trackID = id
		t.lastSave = time.Time{}
		t.recorded = false
	}
	if id == "" {
		return
	}

	switch {
	case st.IsPlaying && t.lastSave.IsZero():
		if !t.recorded {
			t.history.Add(ctx, *st.CurrentTrack, 0, t.wallet())
			metrics.TracksStarted.Inc()
			t.recorded = true
		}
		t.lastSave = t.clock.Now()
	case !st.IsPlaying && !t.lastSave.IsZero():
		t.flushLocked(ctx, "pause")
		t.lastSave = time.Time{}
	}
}

// Tick flushes when at least one interval of playback has accumulated.
func (t *Tracker) Tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.trackID == "" || t.lastSave.IsZero() {
		return
	}
	if t.clock.Since(t.lastSave) >= t.interval {
		t.flushLocked(context.Background(), "interval")
	}
}

// Close flushes pending time and stops accounting.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushLocked(context.Background(), "teardown")
	t.lastSave = time.Time{}
	t.trackID = ""
	t.recorded = false
}

// Run ticks every interval until ctx is done, then closes the tracker.
func (t *Tracker) Run(ctx context.Context) {
	ticker := t.clock.Ticker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.Close()
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// TrackID is the track being accounted, "" when none.
func (t *Tracker) TrackID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trackID
}

// flushLocked credits whole elapsed seconds to the tracked track. The
// fraction stays on the clock for the next flush.
func (t *Tracker) flushLocked(ctx context.Context, reason string) {
	if t.trackID == "" || t.lastSave.IsZero() {
		return
	}
	secs := math.Floor(t.clock.Since(t.lastSave).Seconds())
	if secs <= 0 {
		return
	}
	t.lastSave = t.lastSave.Add(time.Duration(secs) * time.Second)

	wallet := t.wallet()
	if !t.history.Update(ctx, t.trackID, secs, wallet) {
		logger.Debug("no history entry to flush into", logger.String("trackId", t.trackID))
	}
	total := 0
	if wallet != "" {
		total = t.pointsOf(ctx, wallet, secs)
	}
	metrics.Flushes.WithLabelValues(reason).Inc()
	metrics.ListenSeconds.Add(secs)
	logger.Debug("play time flushed",
		logger.String("trackId", t.trackID),
		logger.String("reason", reason),
		logger.Float64("seconds", secs),
		logger.Int("points", total))
}

func (t *Tracker) pointsOf(ctx context.Context, wallet string, secs float64) int {
	if t.points == nil {
		return 0
	}
	return t.points.AddPoints(ctx, wallet, secs)
}

func (t *Tracker) wallet() string {
	if t.identity == nil {
		return ""
	}
	return t.identity.Address()
}
