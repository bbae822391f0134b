package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"basemusic/config"
	"basemusic/core/auth"
	"basemusic/core/catalog"
	"basemusic/core/history"
	"basemusic/core/manifest"
	"basemusic/core/player"
	"basemusic/core/playlist"
	"basemusic/core/points"
	"basemusic/core/room"
	"basemusic/core/session"
	"basemusic/core/wallet"
	"basemusic/logger"
	"basemusic/metrics"
	"basemusic/model"
)

// Deps are the components the HTTP surface drives.
type Deps struct {
	Config    *config.Config
	Engine    *player.Engine
	Catalog   *catalog.Catalog
	Playlists *playlist.Store
	History   *history.Recorder
	Points    *points.Ledger
	Tracker   *session.Tracker
	Wallet    *wallet.Session
	Tokens    *auth.Tokens
	Hub       *room.Hub
	// Static serves /audio/ and /images/. Nil disables file serving.
	Static http.Handler
}

// Server routes HTTP and websocket requests to the player components.
type Server struct {
	cfg       *config.Config
	engine    *player.Engine
	catalog   *catalog.Catalog
	playlists *playlist.Store
	history   *history.Recorder
	points    *points.Ledger
	tracker   *session.Tracker
	wallet    *wallet.Session
	tokens    *auth.Tokens
	hub       *room.Hub
	static    http.Handler

	upgrader websocket.Upgrader
	router   *mux.Router

	mu          sync.RWMutex
	discovered  []model.Track
	discoveryMu sync.Mutex
}

// New wires d together: the tracker and the hub follow engine events.
func New(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		engine:    d.Engine,
		catalog:   d.Catalog,
		playlists: d.Playlists,
		history:   d.History,
		points:    d.Points,
		tracker:   d.Tracker,
		wallet:    d.Wallet,
		tokens:    d.Tokens,
		hub:       d.Hub,
		static:    d.Static,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if s.tracker != nil {
		s.engine.Subscribe(s.tracker.Observe)
	}
	if s.hub != nil {
		s.engine.Subscribe(s.broadcastEvent)
	}
	s.syncTracks()
	s.router = s.routes()
	return s
}

// Handler returns the root handler. CORS wraps the router so preflight
// requests are answered before method matching.
func (s *Server) Handler() http.Handler { return corsMiddleware(s.router) }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(observeMiddleware)

	r.HandleFunc(manifest.Path, s.handleManifest).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tracks", s.handleTracks).Methods(http.MethodGet)
	api.HandleFunc("/catalog/discover", s.handleDiscover).Methods(http.MethodPost)

	api.HandleFunc("/playlists", s.handleListPlaylists).Methods(http.MethodGet)
	api.HandleFunc("/playlists", s.handleCreatePlaylist).Methods(http.MethodPost)
	api.HandleFunc("/playlists/current", s.handleCurrentPlaylist).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", s.handleGetPlaylist).Methods(http.MethodGet)
	api.HandleFunc("/playlists/{id}", s.handleDeletePlaylist).Methods(http.MethodDelete)
	api.HandleFunc("/playlists/{id}/select", s.handleSelectPlaylist).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}/cover", s.handleSetCover).Methods(http.MethodPut)
	api.HandleFunc("/playlists/{id}/tracks", s.handleAddTrack).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id}/tracks/{trackId}", s.handleRemoveTrack).Methods(http.MethodDelete)

	api.HandleFunc("/player", s.handlePlayerState).Methods(http.MethodGet)
	api.HandleFunc("/player/{action}", s.handlePlayerAction).Methods(http.MethodPost)

	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/history/{trackId}/progress", s.handleProgress).Methods(http.MethodGet)

	api.HandleFunc("/points", s.handleLeaderboard).Methods(http.MethodGet)
	api.HandleFunc("/points/me", s.requireWallet(s.handleMyPoints)).Methods(http.MethodGet)
	api.HandleFunc("/points/{wallet}", s.handleWalletPoints).Methods(http.MethodGet)

	api.HandleFunc("/wallet", s.handleWalletState).Methods(http.MethodGet)
	api.HandleFunc("/wallet/connect", s.handleWalletConnect).Methods(http.MethodPost)
	api.HandleFunc("/wallet/disconnect", s.handleWalletDisconnect).Methods(http.MethodPost)
	api.HandleFunc("/wallet/chain", s.handleSwitchChain).Methods(http.MethodPost)

	r.HandleFunc("/ws/player", s.handlePlayerWS).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	if s.static != nil {
		r.PathPrefix("/audio/").Handler(s.static)
		r.PathPrefix("/images/").Handler(s.static)
	}
	return r
}

// Discover re-runs catalog discovery and replaces the playlists wholesale.
func (s *Server) Discover(ctx context.Context) (catalog.Result, error) {
	s.discoveryMu.Lock()
	defer s.discoveryMu.Unlock()

	res, err := s.catalog.Discover(ctx)
	if err != nil {
		return catalog.Result{}, err
	}
	s.mu.Lock()
	s.discovered = res.Tracks
	s.mu.Unlock()

	s.playlists.Replace(ctx, res.Playlists)
	s.syncTracks()
	return res, nil
}

// syncTracks hands the flattened playlists to the engine for next/previous.
func (s *Server) syncTracks() {
	s.engine.SetTracks(s.playlists.AllTracks())
}

// allTracks lists every known track once: discovered first, then any track
// only present in a playlist.
func (s *Server) allTracks() []model.Track {
	s.mu.RLock()
	tracks := append([]model.Track(nil), s.discovered...)
	s.mu.RUnlock()
	tracks = append(tracks, s.playlists.AllTracks()...)
	return lo.UniqBy(tracks, func(t model.Track) string { return t.ID })
}

func (s *Server) findTrack(id string) (model.Track, bool) {
	return lo.Find(s.allTracks(), func(t model.Track) bool { return t.ID == id })
}

func (s *Server) broadcastEvent(ev player.Event) {
	msg, err := room.NewMessage(room.MsgTypePlayback, ev)
	if err != nil {
		logger.Warn("failed to encode player event", logger.ErrorField(err))
		return
	}
	if err := s.hub.Broadcast(msg); err != nil {
		logger.Warn("failed to broadcast player event", logger.ErrorField(err))
	}
}
