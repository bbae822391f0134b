package history

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"basemusic/logger"
	"basemusic/model"
	"basemusic/storage"
)

const (
	// MaxItems bounds the history; the least recently touched track goes first.
	MaxItems = 50
	// DefaultRecent is the Recent limit used when none is given.
	DefaultRecent = 10
)

// Recorder keeps one play record per track, ordered by last touch.
type Recorder struct {
	mu    sync.Mutex
	items *simplelru.LRU[string, model.PlayHistoryItem]
	repo  storage.Repository[[]model.PlayHistoryItem]
	clock clock.Clock
}

// NewRecorder loads the persisted history from repo. A snapshot that cannot
// be read starts the recorder empty.
func NewRecorder(ctx context.Context, repo storage.Repository[[]model.PlayHistoryItem], clk clock.Clock) *Recorder {
	if clk == nil {
		clk = clock.New()
	}
	lru, err := simplelru.NewLRU[string, model.PlayHistoryItem](MaxItems, nil)
	if err != nil {
		// Only a non-positive size fails.
		panic(err)
	}
	r := &Recorder{items: lru, repo: repo, clock: clk}

	stored, err := repo.Load(ctx)
	if err != nil {
		logger.Warn("play history unreadable, starting empty", logger.ErrorField(err))
		return r
	}
	// Stored newest first; replay oldest first so recency order survives.
	for i := len(stored) - 1; i >= 0; i-- {
		if stored[i].TrackID == "" {
			continue
		}
		r.items.Add(stored[i].TrackID, stored[i])
	}
	return r
}

// Add records a fresh entry for track at the front, replacing any earlier
// entry for the same track.
func (r *Recorder) Add(ctx context.Context, track model.Track, playDuration float64, wallet string) model.PlayHistoryItem {
	item := model.PlayHistoryItem{
		TrackID:       track.ID,
		TrackTitle:    track.Title,
		TrackArtist:   track.Artist,
		TrackURL:      track.URL,
		AlbumArt:      track.AlbumArt,
		PlayDate:      r.clock.Now().UnixMilli(),
		PlayDuration:  nonNegative(playDuration),
		TotalDuration: track.Duration,
		WalletAddress: wallet,
	}

	r.mu.Lock()
	r.items.Remove(track.ID)
	r.items.Add(track.ID, item)
	// Saved under the lock so snapshots reach the backend in mutation order.
	r.persist(ctx, r.snapshotLocked())
	r.mu.Unlock()
	return item
}

// Update adds seconds to an existing entry and moves it to the front. An
// empty wallet keeps the wallet already on the entry. It reports false when
// the track has no entry.
func (r *Recorder) Update(ctx context.Context, trackID string, seconds float64, wallet string) bool {
	r.mu.Lock()
	item, ok := r.items.Get(trackID)
	if !ok {
		r.mu.Unlock()
		return false
	}
	item.PlayDuration += nonNegative(seconds)
	item.PlayDate = r.clock.Now().UnixMilli()
	if wallet != "" {
		item.WalletAddress = wallet
	}
	r.items.Add(trackID, item)
	// Saved under the lock so snapshots reach the backend in mutation order.
	r.persist(ctx, r.snapshotLocked())
	r.mu.Unlock()
	return true
}

// Items returns all entries, most recently touched first.
func (r *Recorder) Items() []model.PlayHistoryItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Recent returns at most limit entries, newest first. A non-positive limit
// means DefaultRecent.
func (r *Recorder) Recent(limit int) []model.PlayHistoryItem {
	if limit <= 0 {
		limit = DefaultRecent
	}
	items := r.Items()
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Get returns the entry for trackID without touching its recency.
func (r *Recorder) Get(trackID string) (model.PlayHistoryItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items.Peek(trackID)
}

// Progress is the listened share of the track in percent. It is 0 for
// unknown tracks and tracks without a known length, and is not capped at 100.
func (r *Recorder) Progress(trackID string) float64 {
	item, ok := r.Get(trackID)
	if !ok || item.TotalDuration <= 0 {
		return 0
	}
	return item.PlayDuration / item.TotalDuration * 100
}

// Len returns the number of entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items.Len()
}

// Clear forgets all entries and removes the persisted snapshot.
func (r *Recorder) Clear(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items.Purge()
	if err := r.repo.Clear(ctx); err != nil {
		logger.Error("failed to clear play history", logger.ErrorField(err))
	}
}

// snapshotLocked lists entries newest first. Keys() is oldest first.
func (r *Recorder) snapshotLocked() []model.PlayHistoryItem {
	keys := r.items.Keys()
	out := make([]model.PlayHistoryItem, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if item, ok := r.items.Peek(keys[i]); ok {
			out = append(out, item)
		}
	}
	return out
}

func (r *Recorder) persist(ctx context.Context, items []model.PlayHistoryItem) {
	if err := r.repo.Save(ctx, items); err != nil {
		logger.Error("failed to save play history",
			logger.Int("items", len(items)),
			logger.ErrorField(err))
	}
}

func nonNegative(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	return v
}
