package playlist

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"basemusic/logger"
	"basemusic/model"
	"basemusic/storage"
)

// Store owns the playlist collection and the active selection. Every
// mutation writes the whole collection as one snapshot.
type Store struct {
	mu        sync.Mutex
	playlists []model.Playlist
	currentID string
	lastID    int64
	repo      storage.Repository[[]model.Playlist]
	clock     clock.Clock
}

// NewStore loads the stored collection and selects its first playlist.
func NewStore(ctx context.Context, repo storage.Repository[[]model.Playlist], clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.New()
	}
	s := &Store{repo: repo, clock: clk}
	stored, err := repo.Load(ctx)
	if err != nil {
		logger.Warn("playlists unreadable, starting empty", logger.ErrorField(err))
		return s
	}
	s.playlists = lo.Map(stored, func(p model.Playlist, _ int) model.Playlist { return p.Clone() })
	if len(s.playlists) > 0 {
		s.currentID = s.playlists[0].ID
	}
	return s
}

// Create appends an empty playlist with a time based id.
func (s *Store) Create(ctx context.Context, name string) model.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UnixMilli()
	seq := now
	// Two creations in one millisecond would share an id.
	for seq <= s.lastID || s.indexLocked(fmt.Sprintf("playlist-%d", seq)) >= 0 {
		seq++
	}
	s.lastID = seq

	p := model.Playlist{
		ID:        fmt.Sprintf("playlist-%d", seq),
		Name:      strings.TrimSpace(name),
		Tracks:    []model.Track{},
		CreatedAt: now,
	}
	s.playlists = append(s.playlists, p)
	s.saveLocked(ctx)
	return p.Clone()
}

// AddTrack appends track to the playlist. Duplicates are kept.
func (s *Store) AddTrack(ctx context.Context, playlistID string, track model.Track) bool {
	return s.mutate(ctx, playlistID, func(p *model.Playlist) {
		p.Tracks = append(p.Tracks, track)
	})
}

// RemoveTrack drops every occurrence of trackID from the playlist.
func (s *Store) RemoveTrack(ctx context.Context, playlistID, trackID string) bool {
	return s.mutate(ctx, playlistID, func(p *model.Playlist) {
		p.Tracks = lo.Reject(p.Tracks, func(t model.Track, _ int) bool { return t.ID == trackID })
	})
}

// SetCover replaces the playlist's cover image.
func (s *Store) SetCover(ctx context.Context, playlistID, imageURL string) bool {
	return s.mutate(ctx, playlistID, func(p *model.Playlist) {
		p.CoverImage = imageURL
	})
}

func (s *Store) mutate(ctx context.Context, playlistID string, fn func(*model.Playlist)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(playlistID)
	if i < 0 {
		return false
	}
	fn(&s.playlists[i])
	s.saveLocked(ctx)
	return true
}

// Select makes the playlist active. Unknown ids leave the selection alone.
func (s *Store) Select(playlistID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(playlistID) < 0 {
		return false
	}
	s.currentID = playlistID
	return true
}

// Delete removes the playlist. When it was active, the first remaining
// playlist becomes active, or none.
func (s *Store) Delete(ctx context.Context, playlistID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(playlistID)
	if i < 0 {
		return false
	}
	s.playlists = append(s.playlists[:i], s.playlists[i+1:]...)
	if s.currentID == playlistID {
		s.currentID = ""
		if len(s.playlists) > 0 {
			s.currentID = s.playlists[0].ID
		}
	}
	s.saveLocked(ctx)
	return true
}

// Replace swaps the whole collection, as after catalog discovery, and
// selects the first playlist.
func (s *Store) Replace(ctx context.Context, playlists []model.Playlist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playlists = lo.Map(playlists, func(p model.Playlist, _ int) model.Playlist { return p.Clone() })
	s.currentID = ""
	if len(s.playlists) > 0 {
		s.currentID = s.playlists[0].ID
	}
	s.saveLocked(ctx)
}

// List returns copies of all playlists in order.
func (s *Store) List() []model.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.playlists, func(p model.Playlist, _ int) model.Playlist { return p.Clone() })
}

func (s *Store) Get(playlistID string) (model.Playlist, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(playlistID)
	if i < 0 {
		return model.Playlist{}, false
	}
	return s.playlists[i].Clone(), true
}

// Current returns the active playlist.
func (s *Store) Current() (model.Playlist, bool) {
	s.mu.Lock()
	id := s.currentID
	s.mu.Unlock()
	if id == "" {
		return model.Playlist{}, false
	}
	return s.Get(id)
}

// AllTracks flattens every playlist in order.
func (s *Store) AllTracks() []model.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.FlatMap(s.playlists, func(p model.Playlist, _ int) []model.Track {
		return append([]model.Track(nil), p.Tracks...)
	})
}

// FindTrack looks a track up by id across all playlists.
func (s *Store) FindTrack(trackID string) (model.Track, bool) {
	return lo.Find(s.AllTracks(), func(t model.Track) bool { return t.ID == trackID })
}

func (s *Store) indexLocked(id string) int {
	_, i, _ := lo.FindIndexOf(s.playlists, func(p model.Playlist) bool { return p.ID == id })
	return i
}

func (s *Store) saveLocked(ctx context.Context) {
	snapshot := lo.Map(s.playlists, func(p model.Playlist, _ int) model.Playlist { return p.Clone() })
	if err := s.repo.Save(ctx, snapshot); err != nil {
		logger.Error("failed to save playlists",
			logger.Int("playlists", len(snapshot)),
			logger.ErrorField(err))
	}
}
